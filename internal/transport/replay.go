package transport

import (
	"bytes"
	"fmt"

	"github.com/roach88/shade/internal/store"
)

// DivergenceError reports the first request that differs from a recording.
type DivergenceError struct {
	// Seq is the sequence number of the recorded exchange, or -1 when the
	// recording ran out.
	Seq      int64
	Expected []byte
	Got      []byte
}

// Error implements the error interface.
func (e *DivergenceError) Error() string {
	if e.Seq < 0 {
		return fmt.Sprintf("replay diverged: unrecorded request %x", e.Got)
	}
	return fmt.Sprintf("replay diverged at seq %d: request %x, recorded %x", e.Seq, e.Got, e.Expected)
}

// Replay serves recorded responses in order and checks that every request
// matches its recording byte for byte.
type Replay struct {
	exchanges []store.Exchange
	next      int
}

// NewReplay replays exchanges, which must be in seq order.
func NewReplay(exchanges []store.Exchange) *Replay {
	return &Replay{exchanges: exchanges}
}

// Exchange returns the next recorded response.
func (r *Replay) Exchange(request []byte) ([]byte, error) {
	if r.next >= len(r.exchanges) {
		return nil, &DivergenceError{Seq: -1, Got: request}
	}
	rec := r.exchanges[r.next]
	if !bytes.Equal(request, rec.Request) {
		return nil, &DivergenceError{Seq: rec.Seq, Expected: rec.Request, Got: request}
	}
	r.next++
	return rec.Response, nil
}

// Remaining returns the number of recorded exchanges not yet served.
func (r *Replay) Remaining() int {
	return len(r.exchanges) - r.next
}

package transport

import (
	"context"
	"fmt"

	"github.com/roach88/shade/internal/store"
	"github.com/roach88/shade/internal/trace"
	"github.com/roach88/shade/internal/wire"
)

// ExchangeWriter persists exchanges. *store.Store implements it.
type ExchangeWriter interface {
	WriteExchange(ctx context.Context, ex store.Exchange) error
}

// Recorder decorates a Transport and writes every successful exchange to
// an ExchangeWriter, stamped with the next logical sequence number.
type Recorder struct {
	inner     Transport
	w         ExchangeWriter
	seq       Sequencer
	codec     wire.Codec
	sessionID string
	threadID  int64
}

// NewRecorder records the exchanges of one thread of a session.
func NewRecorder(inner Transport, w ExchangeWriter, seq Sequencer, codec wire.Codec, sessionID string, threadID int64) *Recorder {
	return &Recorder{
		inner:     inner,
		w:         w,
		seq:       seq,
		codec:     codec,
		sessionID: sessionID,
		threadID:  threadID,
	}
}

// Exchange forwards request and records the pair. A pair that does not
// decode is still returned to the caller but not recorded; the caller's own
// decoding reports it.
func (r *Recorder) Exchange(request []byte) ([]byte, error) {
	resp, err := r.inner.Exchange(request)
	if err != nil {
		return nil, err
	}
	cmd, decoded, err := trace.Decode(r.codec, request, resp)
	if err != nil {
		return resp, nil
	}
	digest, err := trace.ExchangeDigest(cmd, decoded)
	if err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}
	ex := store.Exchange{
		SessionID: r.sessionID,
		Seq:       r.seq.Next(),
		ThreadID:  r.threadID,
		Offset:    cmd.Offset,
		Request:   request,
		Response:  resp,
		Digest:    digest,
	}
	if err := r.w.WriteExchange(context.Background(), ex); err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}
	return resp, nil
}

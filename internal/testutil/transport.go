package testutil

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/shade/internal/wire"
)

// ErrScriptExhausted is returned when a ScriptedTransport has no response
// left for a request.
var ErrScriptExhausted = errors.New("scripted transport: no response left")

// ScriptedTransport answers requests with a fixed list of responses and
// keeps every request it saw.
type ScriptedTransport struct {
	mu        sync.Mutex
	codec     wire.Codec
	responses [][]byte
	requests  [][]byte
}

// NewScriptedTransport queues responses, encoded with 8-byte pointers.
// It panics if a response cannot be encoded.
func NewScriptedTransport(responses ...*wire.Response) *ScriptedTransport {
	s := &ScriptedTransport{}
	for _, r := range responses {
		s.Push(r)
	}
	return s
}

// Push queues one more response. It panics if resp cannot be encoded.
func (s *ScriptedTransport) Push(resp *wire.Response) {
	raw, err := s.codec.EncodeResponse(resp)
	if err != nil {
		panic(fmt.Sprintf("ScriptedTransport: %v", err))
	}
	s.PushRaw(raw)
}

// PushRaw queues raw response bytes, for malformed-response tests.
func (s *ScriptedTransport) PushRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, raw)
}

// Exchange records request and returns the next queued response.
func (s *ScriptedTransport) Exchange(request []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, append([]byte(nil), request...))
	if len(s.responses) == 0 {
		return nil, ErrScriptExhausted
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// Requests returns the raw requests seen so far.
func (s *ScriptedTransport) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

// Commands decodes the requests seen so far.
func (s *ScriptedTransport) Commands() ([]*wire.ExecCommand, error) {
	reqs := s.Requests()
	cmds := make([]*wire.ExecCommand, len(reqs))
	for i, req := range reqs {
		cmd, err := s.codec.DecodeCommand(req)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		cmds[i] = cmd
	}
	return cmds, nil
}

// Pending returns the number of queued responses.
func (s *ScriptedTransport) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

package harness

import (
	"fmt"
	"sync"

	"github.com/roach88/shade/internal/wire"
)

// ScriptedExecutor stands in for the symbolic executor of one thread.
//
// It answers each command with the next queued response. With nothing
// queued it answers with an empty response: every symbolic operand stays
// symbolic and no return flag is set.
type ScriptedExecutor struct {
	mu     sync.Mutex
	codec  wire.Codec
	queue  [][]byte
	served int
}

// NewScriptedExecutor creates an executor that decodes commands with codec.
func NewScriptedExecutor(codec wire.Codec) *ScriptedExecutor {
	return &ScriptedExecutor{codec: codec}
}

// Push queues a response.
func (e *ScriptedExecutor) Push(resp *wire.Response) error {
	raw, err := e.codec.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("scripted executor: %w", err)
	}
	e.PushRaw(raw)
	return nil
}

// PushRaw queues raw response bytes.
func (e *ScriptedExecutor) PushRaw(raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, raw)
}

// Exchange checks that request is a well-formed command and answers it.
func (e *ScriptedExecutor) Exchange(request []byte) ([]byte, error) {
	if _, err := e.codec.DecodeCommand(request); err != nil {
		return nil, fmt.Errorf("scripted executor: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.served++
	if len(e.queue) == 0 {
		return e.codec.EncodeResponse(&wire.Response{})
	}
	resp := e.queue[0]
	e.queue = e.queue[1:]
	return resp, nil
}

// Served returns the number of commands answered.
func (e *ScriptedExecutor) Served() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.served
}

// Pending returns the number of queued responses not yet used.
func (e *ScriptedExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

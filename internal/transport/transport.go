// Package transport carries encoded commands to the symbolic executor and
// brings back its responses.
//
// The tracking core only depends on the Transport interface. This package
// also provides a length-prefixed stream transport, a decorator that records
// every exchange into the store, and a transport that replays a recording
// and reports the first divergence.
package transport

// Transport performs one synchronous request/response exchange with the
// executor. A Transport is used by a single tracker and never concurrently.
type Transport interface {
	Exchange(request []byte) ([]byte, error)
}

// Func adapts a function to the Transport interface.
type Func func(request []byte) ([]byte, error)

// Exchange calls f(request).
func (f Func) Exchange(request []byte) ([]byte, error) {
	return f(request)
}

// Sequencer hands out logical sequence numbers.
type Sequencer interface {
	Next() int64
}

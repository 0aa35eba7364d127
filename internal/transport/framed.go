package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind identifies the message carried by a frame.
type Kind uint8

const (
	KindExecuteCommand Kind = 1
	KindExecuteResult  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindExecuteCommand:
		return "ExecuteCommand"
	case KindExecuteResult:
		return "ExecuteResult"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MaxFrameSize bounds the payload of a single frame.
const MaxFrameSize = 64 << 20

// frameHeaderSize is u32 length + u8 kind.
const frameHeaderSize = 5

// ErrFrameTooLarge is returned for frames above MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// UnexpectedKindError reports a frame of the wrong kind.
type UnexpectedKindError struct {
	Want, Got Kind
}

// Error implements the error interface.
func (e *UnexpectedKindError) Error() string {
	return fmt.Sprintf("unexpected frame kind %s, want %s", e.Got, e.Want)
}

// WriteFrame writes one frame: u32 payload length, u8 kind, payload.
// The length covers the payload only.
func WriteFrame(w io.Writer, kind Kind, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("write %s: %w", kind, ErrFrameTooLarge)
	}
	buf := make([]byte, 0, frameHeaderSize+len(payload))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, byte(kind))
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

// ReadFrame reads one frame.
func ReadFrame(r io.Reader) (Kind, []byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:4])
	kind := Kind(hdr[4])
	if n > MaxFrameSize {
		return 0, nil, fmt.Errorf("read %s of %d bytes: %w", kind, n, ErrFrameTooLarge)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read %s payload: %w", kind, err)
	}
	return kind, payload, nil
}

// Framed exchanges commands over a byte stream such as a pipe or socket.
type Framed struct {
	rw io.ReadWriter
}

// NewFramed creates a framed transport over rw.
func NewFramed(rw io.ReadWriter) *Framed {
	return &Framed{rw: rw}
}

// Exchange sends request as an ExecuteCommand frame and waits for the
// ExecuteResult frame.
func (f *Framed) Exchange(request []byte) ([]byte, error) {
	if err := WriteFrame(f.rw, KindExecuteCommand, request); err != nil {
		return nil, err
	}
	kind, payload, err := ReadFrame(f.rw)
	if err != nil {
		return nil, err
	}
	if kind != KindExecuteResult {
		return nil, &UnexpectedKindError{Want: KindExecuteResult, Got: kind}
	}
	return payload, nil
}

// Serve answers ExecuteCommand frames from rw with handler until the stream
// ends. It is the executor side of Framed.
func Serve(rw io.ReadWriter, handler Transport) error {
	for {
		kind, payload, err := ReadFrame(rw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if kind != KindExecuteCommand {
			return &UnexpectedKindError{Want: KindExecuteCommand, Got: kind}
		}
		resp, err := handler.Exchange(payload)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		if err := WriteFrame(rw, KindExecuteResult, resp); err != nil {
			return err
		}
	}
}

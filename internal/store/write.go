package store

import (
	"context"
	"fmt"
)

// Session is one tracked program run.
type Session struct {
	ID          string
	PointerSize int
	Scenario    string
	CreatedSeq  int64
}

// Exchange is one command/response pair as it crossed the transport.
type Exchange struct {
	SessionID string
	Seq       int64
	ThreadID  int64
	Offset    uint32
	Request   []byte
	Response  []byte

	// Digest is the content digest of the decoded pair.
	Digest string
}

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, pointer_size, scenario, created_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.PointerSize,
		sess.Scenario,
		sess.CreatedSeq,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteExchange appends an exchange to its session's log.
// Uses ON CONFLICT(session_id, seq) DO NOTHING for idempotency.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteExchange(ctx context.Context, ex Exchange) error {
	if ex.Request == nil {
		ex.Request = []byte{}
	}
	if ex.Response == nil {
		ex.Response = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges
		(session_id, seq, thread_id, il_offset, request, response, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		ex.SessionID,
		ex.Seq,
		ex.ThreadID,
		int64(ex.Offset),
		ex.Request,
		ex.Response,
		ex.Digest,
	)
	if err != nil {
		return fmt.Errorf("write exchange: %w", err)
	}
	return nil
}

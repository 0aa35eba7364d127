package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AllThreads selects the exchanges of every thread in ReadExchanges.
const AllThreads int64 = -1

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ReadSession returns the session with the given ID.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pointer_size, scenario, created_seq
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.PointerSize, &sess.Scenario, &sess.CreatedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %q: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by creation seq, then ID.
// Returns an empty slice (not nil) if the store holds no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pointer_size, scenario, created_seq
		FROM sessions
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.PointerSize, &sess.Scenario, &sess.CreatedSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadExchanges returns the exchanges of a session in seq order. Pass
// AllThreads to read every thread, or a thread ID to read one.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadExchanges(ctx context.Context, sessionID string, threadID int64) ([]Exchange, error) {
	query := `
		SELECT session_id, seq, thread_id, il_offset, request, response, digest
		FROM exchanges
		WHERE session_id = ?`
	args := []any{sessionID}
	if threadID != AllThreads {
		query += ` AND thread_id = ?`
		args = append(args, threadID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

// Threads returns the distinct thread IDs that recorded exchanges in a
// session, ascending.
func (s *Store) Threads(ctx context.Context, sessionID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT thread_id
		FROM exchanges
		WHERE session_id = ?
		ORDER BY thread_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	threads := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return threads, nil
}

// LastSeq returns the highest exchange seq of a session, or 0 if it has
// none. A recorder resuming a session starts its clock here.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM exchanges WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanExchange(rows *sql.Rows) (Exchange, error) {
	var ex Exchange
	var offset int64
	if err := rows.Scan(&ex.SessionID, &ex.Seq, &ex.ThreadID, &offset,
		&ex.Request, &ex.Response, &ex.Digest); err != nil {
		return Exchange{}, fmt.Errorf("scan exchange: %w", err)
	}
	ex.Offset = uint32(offset)
	return ex, nil
}

package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session with 8-byte pointers.
func createTestSession(t *testing.T, s *Store, id string, seq int64) Session {
	t.Helper()
	sess := Session{ID: id, PointerSize: 8, Scenario: "test", CreatedSeq: seq}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}

// createTestExchange builds an exchange with recognisable payloads.
func createTestExchange(sessionID string, seq, threadID int64) Exchange {
	return Exchange{
		SessionID: sessionID,
		Seq:       seq,
		ThreadID:  threadID,
		Offset:    uint32(seq * 2),
		Request:   []byte{byte(seq), 0, 0, 0},
		Response:  []byte{0},
		Digest:    "digest",
	}
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListSessions_Empty(t *testing.T) {
	s := createTestStore(t)

	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions, "empty result should be a slice, not nil")
	assert.Empty(t, sessions)
}

func TestListSessions_DeterministicOrdering(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "b", 2)
	createTestSession(t, s, "c", 1)
	createTestSession(t, s, "a", 2)

	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestReadExchanges_Empty(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "sess-1", 0)

	exchanges, err := s.ReadExchanges(context.Background(), "sess-1", AllThreads)
	require.NoError(t, err)
	assert.NotNil(t, exchanges)
	assert.Empty(t, exchanges)
}

func TestReadExchanges_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "sess-1", 0)
	ctx := context.Background()

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", seq, 0)))
	}

	exchanges, err := s.ReadExchanges(ctx, "sess-1", AllThreads)
	require.NoError(t, err)
	require.Len(t, exchanges, 3)
	for i, ex := range exchanges {
		assert.Equal(t, int64(i+1), ex.Seq)
	}
	assert.Equal(t, createTestExchange("sess-1", 1, 0), exchanges[0])
}

func TestReadExchanges_ByThread(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "sess-1", 0)
	ctx := context.Background()

	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", 1, 10)))
	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", 2, 20)))
	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", 3, 10)))

	exchanges, err := s.ReadExchanges(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, exchanges, 2)
	assert.Equal(t, int64(1), exchanges[0].Seq)
	assert.Equal(t, int64(3), exchanges[1].Seq)

	threads, err := s.Threads(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, threads)
}

func TestReadExchanges_SessionsIsolated(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "sess-1", 0)
	createTestSession(t, s, "sess-2", 1)
	ctx := context.Background()

	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", 1, 0)))
	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-2", 1, 0)))
	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-2", 2, 0)))

	one, err := s.ReadExchanges(ctx, "sess-1", AllThreads)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	two, err := s.ReadExchanges(ctx, "sess-2", AllThreads)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "sess-1", 0)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", 4, 0)))
	require.NoError(t, s.WriteExchange(ctx, createTestExchange("sess-1", 9, 1)))

	seq, err = s.LastSeq(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}

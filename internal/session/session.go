package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/shade/internal/probe"
	"github.com/roach88/shade/internal/store"
	"github.com/roach88/shade/internal/transport"
	"github.com/roach88/shade/internal/wire"
)

// TransportFactory opens the executor connection of one thread.
type TransportFactory func(threadID int64) (transport.Transport, error)

// Recorder persists a session and its exchanges. *store.Store implements it.
type Recorder interface {
	transport.ExchangeWriter
	WriteSession(ctx context.Context, sess store.Session) error
}

// Session is one tracked program run.
//
// Trackers are created lazily, one per thread ID. The mutex guards only the
// registry: each tracker belongs to its thread and is never shared.
type Session struct {
	ID string

	clock       *Clock
	ids         IDGenerator
	factory     TransportFactory
	recorder    Recorder
	logger      *slog.Logger
	pointerSize int
	scenario    string
	codec       wire.Codec
	probeOpts   []probe.Option

	mu       sync.Mutex
	trackers map[int64]*probe.Tracker
}

// Option configures a Session.
type Option func(*Session)

// WithTransportFactory sets how thread transports are opened. Required.
func WithTransportFactory(f TransportFactory) Option {
	return func(s *Session) {
		s.factory = f
	}
}

// WithIDGenerator sets the session ID generator. The default is
// UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithRecorder records the session and every exchange of its threads.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithClock sets the logical clock. The default starts at 0.
func WithClock(c *Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithLogger sets the logger. Trackers log through it with a thread
// attribute.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithPointerSize sets the Ref width for every thread (4 or 8).
func WithPointerSize(n int) Option {
	return func(s *Session) {
		s.pointerSize = n
	}
}

// WithScenario names what the session runs. It is stored with the session.
func WithScenario(name string) Option {
	return func(s *Session) {
		s.scenario = name
	}
}

// WithTrackerOptions adds options applied to every tracker.
func WithTrackerOptions(opts ...probe.Option) Option {
	return func(s *Session) {
		s.probeOpts = append(s.probeOpts, opts...)
	}
}

// New creates a session. With a recorder, the session record is written
// before any thread can record an exchange.
func New(ctx context.Context, opts ...Option) (*Session, error) {
	s := &Session{
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
		pointerSize: wire.DefaultPointerSize,
		trackers:    make(map[int64]*probe.Tracker),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		return nil, errors.New("session: no transport factory")
	}
	codec, err := wire.NewCodec(s.pointerSize)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.codec = codec
	if s.clock == nil {
		s.clock = NewClock()
	}
	s.ID = s.ids.Generate()
	s.logger = s.logger.With("session", s.ID)

	if s.recorder != nil {
		rec := store.Session{
			ID:          s.ID,
			PointerSize: s.pointerSize,
			Scenario:    s.scenario,
			CreatedSeq:  s.clock.Next(),
		}
		if err := s.recorder.WriteSession(ctx, rec); err != nil {
			return nil, fmt.Errorf("session %s: %w", s.ID, err)
		}
	}
	s.logger.Debug("session started", "pointer_size", s.pointerSize, "recording", s.recorder != nil)
	return s, nil
}

// Clock returns the session's logical clock.
func (s *Session) Clock() *Clock { return s.clock }

// PointerSize returns the Ref width of the session.
func (s *Session) PointerSize() int { return s.pointerSize }

// Tracker returns the tracker of a thread, creating it on first use.
func (s *Session) Tracker(threadID int64) (*probe.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.trackers[threadID]; ok {
		return t, nil
	}
	tr, err := s.factory(threadID)
	if err != nil {
		return nil, fmt.Errorf("open transport for thread %d: %w", threadID, err)
	}
	if s.recorder != nil {
		tr = transport.NewRecorder(tr, s.recorder, s.clock, s.codec, s.ID, threadID)
	}
	opts := make([]probe.Option, 0, len(s.probeOpts)+2)
	opts = append(opts,
		probe.WithLogger(s.logger.With("thread", threadID)),
		probe.WithPointerSize(s.pointerSize))
	opts = append(opts, s.probeOpts...)
	t, err := probe.New(tr, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracker for thread %d: %w", threadID, err)
	}
	s.trackers[threadID] = t
	return t, nil
}

// Release forgets a finished thread and returns the error that poisoned
// its tracker, if any.
func (s *Session) Release(threadID int64) error {
	s.mu.Lock()
	t, ok := s.trackers[threadID]
	delete(s.trackers, threadID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("release thread %d: no tracker", threadID)
	}
	st := t.Stats()
	s.logger.Debug("thread released",
		"thread", threadID,
		"instructions", st.Instructions,
		"commands", st.Commands,
		"concretized", st.Concretized)
	return t.Err()
}

// Threads returns the IDs of the live threads, ascending.
func (s *Session) Threads() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.trackers))
	for id := range s.trackers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

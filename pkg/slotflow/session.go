package slotflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
	"github.com/rsharan/slotflow/pkg/slotflow/store"
)

// ErrConversationEnded is returned when input arrives for a
// conversation that already reached a terminal state.
var ErrConversationEnded = errors.New("conversation already ended")

// StepResult is what a channel adapter needs to reply to the user.
type StepResult struct {
	// Response is the text to send back.
	Response string

	// ShouldConfirm asks the channel to render an explicit yes/no
	// affordance alongside the response.
	ShouldConfirm bool

	// Completeness is the required-field coverage after this turn.
	Completeness float64

	// Cursor is where the conversation paused, or a terminal id.
	Cursor string

	// Done is set when the conversation reached a terminal state.
	Done bool

	// Record is the post-step record, already persisted.
	Record *state.Record
}

// Session drives conversations through a compiled graph: it owns the
// load-step-save cycle and the per-key serialization around it. One
// Session serves any number of conversations concurrently; turns for
// the same key are strictly ordered.
type Session struct {
	graph        *CompiledGraph[*state.Record]
	store        store.Store
	locker       store.Locker
	lockTTL      time.Duration
	historyLimit int
	fallback     string
	logger       *slog.Logger
	stepOpts     []StepOption
}

// SessionOption is a functional option for Session.
type SessionOption func(*Session)

// WithSessionLocker replaces the default in-process key lock, e.g.
// with the Redis locker for multi-instance deployments.
func WithSessionLocker(l store.Locker) SessionOption {
	return func(s *Session) {
		s.locker = l
	}
}

// WithLockTTL bounds how long a crashed instance can hold a
// distributed key lock.
func WithLockTTL(d time.Duration) SessionOption {
	return func(s *Session) {
		s.lockTTL = d
	}
}

// WithHistoryLimit caps how many turns each record keeps.
func WithHistoryLimit(n int) SessionOption {
	return func(s *Session) {
		s.historyLimit = n
	}
}

// WithFallbackResponse sets the reply used when a step produced none.
func WithFallbackResponse(text string) SessionOption {
	return func(s *Session) {
		s.fallback = text
	}
}

// WithSessionLogger sets the logger passed into every step.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithStepOptions forwards options (metrics, tracing, node budget) to
// every StepFrom call.
func WithStepOptions(opts ...StepOption) SessionOption {
	return func(s *Session) {
		s.stepOpts = opts
	}
}

// NewSession creates a session over a compiled graph and a store.
func NewSession(graph *CompiledGraph[*state.Record], st store.Store, opts ...SessionOption) *Session {
	s := &Session{
		graph:        graph,
		store:        st,
		locker:       store.NewKeyLock(),
		lockTTL:      30 * time.Second,
		historyLimit: 50,
		fallback:     "Sorry, I didn't catch that. Could you rephrase?",
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Step processes one inbound utterance for the conversation key:
// acquire the key lock, load or create the record, run the graph from
// the stored cursor, persist, reply. The record is saved only when the
// step succeeds, so a failed step leaves the conversation exactly
// where it was.
func (s *Session) Step(ctx context.Context, key, utterance string) (*StepResult, error) {
	unlock, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock conversation %q: %w", key, err)
	}
	defer unlock(context.WithoutCancel(ctx))

	rec, err := s.store.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = state.New(key, s.graph.Entry())
	case err != nil:
		return nil, fmt.Errorf("load conversation %q: %w", key, err)
	}

	if Terminal(rec.Cursor) {
		return &StepResult{
			Cursor:       rec.Cursor,
			Done:         true,
			Completeness: rec.Completeness,
			Record:       rec,
		}, ErrConversationEnded
	}

	rec.AppendTurn(state.SpeakerUser, utterance)
	rec.Utterance = utterance
	rec.Response = ""
	rec.ShouldConfirm = false

	sfCtx := NewContext(ctx,
		WithLogger(s.logger),
		WithConversationKey(key),
	)

	out, next, err := s.graph.StepFrom(sfCtx, rec.Cursor, rec, s.stepOpts...)
	if err != nil {
		return nil, fmt.Errorf("step conversation %q: %w", key, err)
	}

	out.Cursor = next
	if out.Response == "" {
		out.Response = s.fallback
	}
	out.AppendTurn(state.SpeakerBot, out.Response)
	out.TrimHistory(s.historyLimit)

	if err := s.store.Save(ctx, out); err != nil {
		return nil, fmt.Errorf("save conversation %q: %w", key, err)
	}

	return &StepResult{
		Response:      out.Response,
		ShouldConfirm: out.ShouldConfirm,
		Completeness:  out.Completeness,
		Cursor:        next,
		Done:          Terminal(next),
		Record:        out,
	}, nil
}

// Snapshot returns a read-only view of the conversation without
// stepping it.
func (s *Session) Snapshot(ctx context.Context, key string) (state.Snapshot, error) {
	rec, err := s.store.Load(ctx, key)
	if err != nil {
		return state.Snapshot{}, err
	}
	return rec.Snapshot(), nil
}

// Reset deletes the conversation so the next utterance starts fresh.
func (s *Session) Reset(ctx context.Context, key string) error {
	unlock, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil {
		return fmt.Errorf("lock conversation %q: %w", key, err)
	}
	defer unlock(context.WithoutCancel(ctx))

	return s.store.Delete(ctx, key)
}

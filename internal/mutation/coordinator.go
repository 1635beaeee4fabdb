// Package mutation runs server mutations with optional optimistic cache
// edits, rollback on failure and dependent invalidation on success.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// ErrPending is returned when a control already has a mutation in flight.
var ErrPending = apperrors.New(apperrors.ErrCodeMutationPending, "a request from this control is still in progress")

// Mutation describes one server change and its cache effects.
type Mutation struct {
	// Name labels logs and metrics, e.g. "delete_event".
	Name string

	// Target is the entry edited by Optimistic.
	Target query.Key

	// Optimistic, when set, edits Target before the request is sent and is
	// undone if the request fails. It must return a new value.
	Optimistic func(old any) any

	// Do performs the request.
	Do func(ctx context.Context) error

	// Invalidate lists prefixes marked stale on success.
	Invalidate []query.Key

	// Refetch lists prefixes reloaded before Mutate returns on success.
	Refetch []query.Key

	// SuccessMessage is shown on success when non-empty.
	SuccessMessage string

	// FailureMessage is shown when the error carries no usable message.
	FailureMessage string

	// OnSuccess and OnError run on the triggering control unless it was
	// closed before the mutation settled.
	OnSuccess func()
	OnError   func(error)
}

// Coordinator executes mutations against a cache.
type Coordinator struct {
	cache     *query.Cache
	notifier  Notifier
	onFailure func(error)
	logger    *log.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets where user-facing messages go.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithFailureHook is called with every mutation error, after rollback.
func WithFailureHook(fn func(error)) Option {
	return func(c *Coordinator) { c.onFailure = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records mutation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator for cache.
func NewCoordinator(cache *query.Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache:  cache,
		logger: log.DefaultLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Control returns a fresh control, one per triggering button.
func (c *Coordinator) Control() *Control {
	return &Control{coord: c}
}

// Run executes m on a throwaway control.
func (c *Coordinator) Run(ctx context.Context, m Mutation) error {
	return c.Control().Mutate(ctx, m)
}

// Control serializes the mutations of one trigger: while one is in flight
// further attempts are refused.
type Control struct {
	coord   *Coordinator
	mu      sync.Mutex
	pending bool
	closed  bool
}

// Pending reports whether a mutation is in flight.
func (ctl *Control) Pending() bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.pending
}

// Close detaches the control. Mutations still in flight keep their cache
// effects but no longer call OnSuccess or OnError.
func (ctl *Control) Close() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.closed = true
}

// Mutate runs m. It returns ErrPending without side effects when the
// control is busy, and the classified error when the request fails.
func (ctl *Control) Mutate(ctx context.Context, m Mutation) error {
	ctl.mu.Lock()
	if ctl.pending {
		ctl.mu.Unlock()
		return ErrPending
	}
	ctl.pending = true
	ctl.mu.Unlock()

	c := ctl.coord
	start := c.now()
	logger := c.logger.With("mutation", m.Name)

	var previous query.Entry
	optimistic := m.Optimistic != nil && m.Target != nil
	if optimistic {
		c.cache.Cancel(m.Target)
		previous, _ = c.cache.Peek(m.Target)
		previous.Key = m.Target
		c.cache.SetData(m.Target, m.Optimistic)
	}

	err := safeDo(ctx, m.Do)

	rolledBack := false
	if err != nil {
		err = classify(err)
		if optimistic {
			c.cache.Restore(previous)
			c.cache.MarkStale(m.Target)
			rolledBack = true
		}
		logger.WithError(err).Warn("mutation failed", "rolled_back", rolledBack)
		// A rejected credential only downgrades the session through the
		// failure hook; it is not reported as a failed action.
		if !apperrors.IsAuthExpired(err) {
			c.notify(Notification{
				Level:    LevelError,
				Mutation: m.Name,
				Message:  failureMessage(err, m.FailureMessage),
				Err:      err,
			})
		}
		if c.onFailure != nil {
			c.onFailure(err)
		}
	} else {
		for _, prefix := range m.Invalidate {
			c.cache.Invalidate(prefix)
		}
		for _, prefix := range m.Refetch {
			if rerr := c.cache.Refetch(ctx, prefix); rerr != nil {
				logger.WithError(rerr).Warn("refetch after mutation failed", "key", prefix.String())
			}
		}
		logger.Debug("mutation succeeded")
		if m.SuccessMessage != "" {
			c.notify(Notification{Level: LevelSuccess, Mutation: m.Name, Message: m.SuccessMessage})
		}
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.MutationSettled(m.Name, outcome, c.now().Sub(start), rolledBack)

	ctl.mu.Lock()
	ctl.pending = false
	closed := ctl.closed
	ctl.mu.Unlock()

	if !closed {
		if err != nil && m.OnError != nil {
			m.OnError(err)
		}
		if err == nil && m.OnSuccess != nil {
			m.OnSuccess()
		}
	}
	return err
}

func (c *Coordinator) notify(n Notification) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

func safeDo(ctx context.Context, do func(context.Context) error) (err error) {
	if do == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrCodeUnexpected, fmt.Sprintf("mutation panicked: %v", r))
		}
	}()
	return do(ctx)
}

// classify puts uncoded errors into the taxonomy.
func classify(err error) error {
	if apperrors.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrCodeNetwork, "request was cancelled", err)
	}
	return apperrors.Wrap(apperrors.ErrCodeUnexpected, "", err)
}

// failureMessage prefers the server's message and falls back to the
// mutation's own wording when the error has nothing specific to say.
func failureMessage(err error, fallback string) string {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNetwork, apperrors.ErrCodeUnexpected:
		if fallback != "" {
			return fallback
		}
	}
	if msg := apperrors.UserMessage(err); msg != "" {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return "Request failed"
}

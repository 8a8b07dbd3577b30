package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
)

// SessionSource is the part of the classification service the pollers need.
type SessionSource interface {
	ActiveSession(ctx context.Context) (*client.Operacion, error)
	CompletedSessions(ctx context.Context) ([]client.OperacionCompletada, error)
}

// ActiveUpdate is one active-session observation. Session is nil when the
// service reports none or could not be reached.
type ActiveUpdate struct {
	Session  *client.Operacion
	IssuedAt time.Time
}

// CompletedUpdate is one completed-sessions fetch.
type CompletedUpdate struct {
	Sessions []client.OperacionCompletada
	Err      error
	IssuedAt time.Time
}

// ActivePoller asks for the active session every interval.
type ActivePoller struct {
	src    SessionSource
	logger *zap.Logger
	out    chan ActiveUpdate
	task   *Task
}

// NewActive starts polling immediately.
func NewActive(parent context.Context, src SessionSource, interval time.Duration, logger *zap.Logger) *ActivePoller {
	p := &ActivePoller{
		src:    src,
		logger: logger,
		out:    make(chan ActiveUpdate, 1),
	}
	p.task = Start(parent, "active-session", interval, true, p.poll)
	return p
}

func (p *ActivePoller) poll(ctx context.Context) {
	issued := time.Now()
	// The request outlives Stop; its result is dropped below.
	s, err := p.src.ActiveSession(context.WithoutCancel(ctx))
	if err != nil {
		if !errors.Is(err, client.ErrNoActiveSession) {
			p.logger.Debug("active poll failed", zap.Error(err))
		}
		s = nil
	}
	publish(ctx, p.out, ActiveUpdate{Session: s, IssuedAt: issued})
}

// Updates delivers observations in the order they were issued.
func (p *ActivePoller) Updates() <-chan ActiveUpdate { return p.out }

// Kick polls again now.
func (p *ActivePoller) Kick() { p.task.Kick() }

// Stop ends polling. Results still in flight are discarded.
func (p *ActivePoller) Stop() { p.task.Stop() }

// Done is closed once the polling goroutine has exited.
func (p *ActivePoller) Done() <-chan struct{} { return p.task.Done() }

// CompletedFetcher fetches completed sessions once on start and again on
// every Kick.
type CompletedFetcher struct {
	src    SessionSource
	logger *zap.Logger
	out    chan CompletedUpdate
	task   *Task
}

func NewCompleted(parent context.Context, src SessionSource, logger *zap.Logger) *CompletedFetcher {
	f := &CompletedFetcher{
		src:    src,
		logger: logger,
		out:    make(chan CompletedUpdate, 1),
	}
	f.task = Start(parent, "completed-sessions", 0, true, f.fetch)
	return f
}

func (f *CompletedFetcher) fetch(ctx context.Context) {
	issued := time.Now()
	list, err := f.src.CompletedSessions(context.WithoutCancel(ctx))
	if err != nil {
		f.logger.Warn("completed sessions fetch failed", zap.Error(err))
	}
	publish(ctx, f.out, CompletedUpdate{Sessions: list, Err: err, IssuedAt: issued})
}

func (f *CompletedFetcher) Updates() <-chan CompletedUpdate { return f.out }
func (f *CompletedFetcher) Kick() { f.task.Kick() }
func (f *CompletedFetcher) Stop() { f.task.Stop() }
func (f *CompletedFetcher) Done() <-chan struct{} { return f.task.Done() }

// publish hands v to the consumer unless ctx ended first.
func publish[T any](ctx context.Context, out chan<- T, v T) {
	if ctx.Err() != nil {
		return
	}
	select {
	case out <- v:
	case <-ctx.Done():
	}
}

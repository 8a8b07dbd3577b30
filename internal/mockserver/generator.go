package mockserver

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Generator plays the detection script: while a session is active it
// records a synthetic classification every interval.
type Generator struct {
	store    *Store
	notify   func(context.Context)
	interval time.Duration
	logger   *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
}

// NewGenerator creates a generator. notify runs after each recorded event.
func NewGenerator(store *Store, interval time.Duration, notify func(context.Context), logger *zap.Logger) *Generator {
	return &Generator{
		store:    store,
		notify:   notify,
		interval: interval,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Start runs the generator until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	if g.interval <= 0 {
		return
	}
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Step(ctx)
		}
	}
}

// Step records one event if a session is active and reports whether it did.
func (g *Generator) Step(ctx context.Context) bool {
	label := Labels[g.rng.Intn(len(Labels))]
	confidence := round2(0.55 + 0.44*g.rng.Float64())

	ev, err := g.store.Record(ctx, label, confidence, g.now())
	if errors.Is(err, ErrNoActiveSession) {
		return false
	}
	if err != nil {
		g.logger.Warn("generator record failed", zap.Error(err))
		return false
	}
	g.logger.Debug("generated classification",
		zap.Int("id", ev.ID), zap.String("tipo_material", label), zap.Float64("confianza", confidence))
	if g.notify != nil {
		g.notify(ctx)
	}
	return true
}

package mockserver

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGeneratorStep(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	notified := 0
	g := NewGenerator(s, time.Second, func(context.Context) { notified++ }, zap.NewNop())

	if g.Step(ctx) {
		t.Fatal("Step() recorded without an active session")
	}
	if notified != 0 {
		t.Fatalf("notify called %d times without a session", notified)
	}

	if _, err := s.Start(ctx, time.Now(), ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if !g.Step(ctx) {
			t.Fatalf("Step() %d did not record", i)
		}
	}
	if notified != 4 {
		t.Errorf("notify called %d times, want 4", notified)
	}

	op, err := s.Active(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(op.Clasificaciones) != 4 {
		t.Fatalf("recorded %d events, want 4", len(op.Clasificaciones))
	}
	for _, ev := range op.Clasificaciones {
		if ev.Confianza < 0.55 || ev.Confianza > 0.99 {
			t.Errorf("confianza %v outside [0.55, 0.99]", ev.Confianza)
		}
		known := false
		for _, l := range Labels {
			known = known || l == ev.TipoMaterial
		}
		if !known {
			t.Errorf("unknown label %q", ev.TipoMaterial)
		}
	}
}

func TestGeneratorDisabled(t *testing.T) {
	g := NewGenerator(newTestStore(t), 0, nil, zap.NewNop())
	// Returns immediately without starting a goroutine.
	g.Start(context.Background())
}

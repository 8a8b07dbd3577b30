package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExportsCounters(t *testing.T) {
	m := New()
	m.TicksSubmitted.Add(3)
	m.TicksBusy.Add(1)
	m.ObserveClassify(120*time.Millisecond, nil)
	m.ObserveClassify(80*time.Millisecond, errors.New("boom"))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		"clasificador_sampler_ticks_submitted_total 3",
		"clasificador_sampler_ticks_busy_total 1",
		"clasificador_classify_requests_total 2",
		"clasificador_classify_failures_total 1",
		"clasificador_classify_latency_ms 80",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	a.FramesRead.Add(5)
	if b.FramesRead.Load() != 0 {
		t.Fatal("instances share counters")
	}
}

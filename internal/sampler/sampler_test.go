package sampler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/capture"
	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
)

type fakeSource struct {
	img image.Image
}

func (f *fakeSource) Latest() (capture.Frame, bool) {
	if f.img == nil {
		return capture.Frame{}, false
	}
	return capture.Frame{Image: f.img, Seq: 1, At: time.Now()}, true
}

func (f *fakeSource) Size() image.Point {
	if f.img == nil {
		return image.Point{}
	}
	return f.img.Bounds().Size()
}

// fakeClassifier records uploads and can hold requests open.
type fakeClassifier struct {
	mu      sync.Mutex
	uploads [][]byte
	release chan struct{}
	err     error

	calls       atomic.Int32
	concurrent  atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, data []byte) (client.ClassificationResult, error) {
	f.calls.Add(1)
	n := f.concurrent.Add(1)
	defer f.concurrent.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, data)
	release := f.release
	err := f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return client.ClassificationResult{}, err
	}
	return client.ClassificationResult{TipoMaterial: "metal", Confianza: 0.87}, nil
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 30, A: 255})
		}
	}
	return img
}

func newTestSampler(src FrameSource, cls Classifier, mode Mode) (*Sampler, *metrics.Metrics) {
	m := metrics.New()
	s := New(src, cls, Options{Mode: mode, Interval: time.Hour}, zap.NewNop(), m)
	return s, m
}

func recvOutcome(t *testing.T, s *Sampler) Outcome {
	t.Helper()
	select {
	case o := <-s.Outcomes():
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return Outcome{}
	}
}

func waitIdle(t *testing.T, s *Sampler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Busy() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Busy() {
		t.Fatal("sampler still busy")
	}
}

func decodedSize(t *testing.T, data []byte) image.Point {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("upload is not a JPEG: %v", err)
	}
	return img.Bounds().Size()
}

func TestTickSkipsWhileInFlight(t *testing.T) {
	cls := &fakeClassifier{release: make(chan struct{})}
	s, m := newTestSampler(&fakeSource{img: solid(640, 480)}, cls, Continuous)
	defer s.Close()

	if got := s.Tick(); got != TickSubmitted {
		t.Fatalf("first Tick() = %v, want submitted", got)
	}
	for i := 0; i < 3; i++ {
		if got := s.Tick(); got != TickBusy {
			t.Fatalf("Tick() while in flight = %v, want busy", got)
		}
	}

	close(cls.release)
	o := recvOutcome(t, s)
	if o.Err != nil || o.Result.TipoMaterial != "metal" || o.Seq != 1 {
		t.Fatalf("outcome = %+v", o)
	}
	waitIdle(t, s)

	if got := s.Tick(); got != TickSubmitted {
		t.Fatalf("Tick() after completion = %v, want submitted", got)
	}
	recvOutcome(t, s)

	if got := cls.calls.Load(); got != 2 {
		t.Errorf("classify calls = %d, want 2", got)
	}
	if m.TicksBusy.Load() != 3 || m.TicksSubmitted.Load() != 2 {
		t.Errorf("metrics busy=%d submitted=%d", m.TicksBusy.Load(), m.TicksSubmitted.Load())
	}
}

func TestTickNotReady(t *testing.T) {
	cls := &fakeClassifier{}
	s, m := newTestSampler(&fakeSource{}, cls, Continuous)
	defer s.Close()

	if got := s.Tick(); got != TickNotReady {
		t.Fatalf("Tick() = %v, want not-ready", got)
	}
	if got := s.Tick(); got != TickNotReady {
		t.Fatalf("second Tick() = %v, want not-ready (slot must be released)", got)
	}
	if cls.calls.Load() != 0 {
		t.Fatal("classifier called without a frame")
	}
	if m.TicksNotReady.Load() != 2 {
		t.Errorf("TicksNotReady = %d", m.TicksNotReady.Load())
	}
}

func TestRegionByMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		frame image.Point
		want  image.Point
	}{
		{"continuous crops centre", Continuous, image.Pt(640, 480), image.Pt(224, 224)},
		{"continuous scales small frame", Continuous, image.Pt(160, 120), image.Pt(224, 224)},
		{"single shot sends full frame", SingleShot, image.Pt(640, 480), image.Pt(640, 480)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &fakeClassifier{}
			s, _ := newTestSampler(&fakeSource{img: solid(tt.frame.X, tt.frame.Y)}, cls, tt.mode)
			defer s.Close()

			if got := s.Tick(); got != TickSubmitted {
				t.Fatalf("Tick() = %v", got)
			}
			recvOutcome(t, s)

			cls.mu.Lock()
			defer cls.mu.Unlock()
			if got := decodedSize(t, cls.uploads[0]); got != tt.want {
				t.Errorf("upload size = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCenterSquareTakesMiddle(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 224))
	// Left and right margins black, centre 224 columns white.
	for y := range 224 {
		for x := 38; x < 262; x++ {
			img.Set(x, y, color.White)
		}
	}
	out := CenterSquare(img, 224)
	if got := out.Bounds().Size(); got != image.Pt(224, 224) {
		t.Fatalf("size = %v", got)
	}
	for _, p := range []image.Point{{0, 0}, {223, 223}, {112, 112}} {
		r, g, b, _ := out.At(p.X, p.Y).RGBA()
		if r != 0xffff || g != 0xffff || b != 0xffff {
			t.Errorf("pixel %v = %v,%v,%v, want white", p, r, g, b)
		}
	}
}

func TestOutcomeCarriesError(t *testing.T) {
	cls := &fakeClassifier{err: client.ErrClassificationFailed}
	s, _ := newTestSampler(&fakeSource{img: solid(300, 300)}, cls, SingleShot)
	defer s.Close()

	s.Tick()
	o := recvOutcome(t, s)
	if !errors.Is(o.Err, client.ErrClassificationFailed) {
		t.Fatalf("outcome err = %v", o.Err)
	}
	if o.Mode != SingleShot {
		t.Errorf("outcome mode = %v", o.Mode)
	}
}

func TestCloseDropsInFlightOutcome(t *testing.T) {
	cls := &fakeClassifier{release: make(chan struct{})}
	s, _ := newTestSampler(&fakeSource{img: solid(300, 300)}, cls, Continuous)

	if got := s.Tick(); got != TickSubmitted {
		t.Fatalf("Tick() = %v", got)
	}
	s.Close()
	close(cls.release)

	select {
	case o := <-s.Outcomes():
		t.Fatalf("outcome delivered after Close: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}
	if got := s.Tick(); got != TickClosed {
		t.Fatalf("Tick() after Close = %v, want closed", got)
	}
}

func TestRunNeverOverlaps(t *testing.T) {
	cls := &fakeClassifier{}
	m := metrics.New()
	s := New(&fakeSource{img: solid(320, 240)}, cls, Options{Mode: Continuous, Interval: 5 * time.Millisecond}, zap.NewNop(), m)
	s.Run()

	for i := 0; i < 5; i++ {
		recvOutcome(t, s)
	}
	s.Close()

	if got := cls.maxInFlight.Load(); got != 1 {
		t.Fatalf("max concurrent classify calls = %d, want 1", got)
	}
}

func TestRunIgnoredInSingleShot(t *testing.T) {
	cls := &fakeClassifier{}
	m := metrics.New()
	s := New(&fakeSource{img: solid(320, 240)}, cls, Options{Mode: SingleShot, Interval: time.Millisecond}, zap.NewNop(), m)
	s.Run()
	defer s.Close()

	time.Sleep(30 * time.Millisecond)
	if cls.calls.Load() != 0 {
		t.Fatalf("single-shot sampler ran on its own: %d calls", cls.calls.Load())
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("single") != SingleShot || ParseMode("continuous") != Continuous || ParseMode("") != Continuous {
		t.Fatal("ParseMode mapping wrong")
	}
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/config"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
)

func waitFrame(t *testing.T, s *Stream) Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f, ok := s.Latest(); ok {
			return f
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no frame within deadline")
	return Frame{}
}

func openT(t *testing.T, device string, d Driver) *Stream {
	t.Helper()
	s, err := Open(context.Background(), device, d, zap.NewNop(), metrics.New())
	if err != nil {
		t.Fatalf("Open(%s) error: %v", device, err)
	}
	return s
}

func TestSyntheticStream(t *testing.T) {
	s := openT(t, t.Name(), SyntheticDriver{Width: 320, Height: 240, FPS: 100})
	defer s.Close()

	f := waitFrame(t, s)
	if got := f.Image.Bounds().Size(); got != image.Pt(320, 240) {
		t.Errorf("frame size = %v", got)
	}
	if s.Size() != image.Pt(320, 240) {
		t.Errorf("Size() = %v", s.Size())
	}
	if f.Seq == 0 {
		t.Error("Seq should start at 1")
	}
}

func TestOpenSameDeviceIsBusy(t *testing.T) {
	s := openT(t, t.Name(), SyntheticDriver{FPS: 50})

	_, err := Open(context.Background(), t.Name(), SyntheticDriver{}, zap.NewNop(), metrics.New())
	if !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Open err = %v, want ErrDeviceBusy", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	again := openT(t, t.Name(), SyntheticDriver{FPS: 50})
	again.Close()
}

type failingDriver struct{}

func (failingDriver) Open(ctx context.Context) (Reader, error) {
	return nil, errors.New("permission denied")
}

func TestOpenFailureReleasesDevice(t *testing.T) {
	_, err := Open(context.Background(), t.Name(), failingDriver{}, zap.NewNop(), metrics.New())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}

	s := openT(t, t.Name(), SyntheticDriver{FPS: 50})
	s.Close()
}

// gatedReader delivers a frame only when told to.
type gatedReader struct {
	ctx    context.Context
	gate   chan struct{}
	closed bool
}

func (r *gatedReader) ReadFrame() (image.Image, error) {
	select {
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	case <-r.gate:
		return image.NewRGBA(image.Rect(0, 0, 8, 6)), nil
	}
}

func (r *gatedReader) Close() error {
	r.closed = true
	return nil
}

type gatedDriver struct{ r *gatedReader }

func (d gatedDriver) Open(ctx context.Context) (Reader, error) {
	d.r.ctx = ctx
	return d.r, nil
}

func TestSizeZeroUntilFirstFrame(t *testing.T) {
	r := &gatedReader{gate: make(chan struct{})}
	s := openT(t, t.Name(), gatedDriver{r: r})

	if _, ok := s.Latest(); ok {
		t.Fatal("Latest() ok before any frame")
	}
	if s.Size() != (image.Point{}) {
		t.Fatalf("Size() = %v before any frame", s.Size())
	}

	r.gate <- struct{}{}
	waitFrame(t, s)
	if s.Size() != image.Pt(8, 6) {
		t.Errorf("Size() = %v", s.Size())
	}

	s.Close()
	if !r.closed {
		t.Error("Close() did not close the reader")
	}
}

type errReader struct{ n int }

func (r *errReader) ReadFrame() (image.Image, error) {
	r.n++
	if r.n == 1 {
		return nil, errors.New("glitch")
	}
	if r.n > 2 {
		return nil, io.EOF
	}
	return image.NewGray(image.Rect(0, 0, 2, 2)), nil
}

func (r *errReader) Close() error { return nil }

type errDriver struct{}

func (errDriver) Open(ctx context.Context) (Reader, error) { return &errReader{}, nil }

func TestReadErrorsAreCounted(t *testing.T) {
	m := metrics.New()
	s, err := Open(context.Background(), t.Name(), errDriver{}, zap.NewNop(), m)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	waitFrame(t, s)
	if m.ReadErrors.Load() != 1 {
		t.Errorf("ReadErrors = %d, want 1", m.ReadErrors.Load())
	}
	if m.FramesRead.Load() != 1 {
		t.Errorf("FramesRead = %d, want 1", m.FramesRead.Load())
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after a good frame", s.Err())
	}
}

func TestMJPEGDriver(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for range 3 {
			fmt.Fprint(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n")
			jpeg.Encode(w, img, &jpeg.Options{Quality: 75})
			fmt.Fprint(w, "\r\n")
		}
		fmt.Fprint(w, "--frame--\r\n")
	}))
	defer srv.Close()

	s := openT(t, srv.URL, MJPEGDriver{URL: srv.URL})
	defer s.Close()

	f := waitFrame(t, s)
	if got := f.Image.Bounds().Size(); got != image.Pt(64, 48) {
		t.Errorf("frame size = %v", got)
	}
}

func TestMJPEGDriverRejectsPlainResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	_, err := Open(context.Background(), srv.URL, MJPEGDriver{URL: srv.URL}, zap.NewNop(), metrics.New())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestFileDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 30, 20))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s := openT(t, path, FileDriver{Path: path, FPS: 100})
	defer s.Close()
	if got := waitFrame(t, s).Image.Bounds().Size(); got != image.Pt(30, 20) {
		t.Errorf("frame size = %v", got)
	}

	if _, err := Open(context.Background(), "missing", FileDriver{Path: filepath.Join(t.TempDir(), "nope.png")}, zap.NewNop(), metrics.New()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing file err = %v, want ErrUnavailable", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		cfg        config.CaptureConfig
		wantDevice string
		wantErr    bool
	}{
		{config.CaptureConfig{Source: config.SourceSynthetic}, "synthetic", false},
		{config.CaptureConfig{Source: config.SourceMJPEG, MJPEGURL: "http://cam/stream"}, "http://cam/stream", false},
		{config.CaptureConfig{Source: config.SourceFile, File: "/tmp/a.jpg"}, "/tmp/a.jpg", false},
		{config.CaptureConfig{Source: config.SourceDevice, Device: 2}, "device:2", false},
		{config.CaptureConfig{Source: "webrtc"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Source, func(t *testing.T) {
			device, d, err := FromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || d == nil {
				t.Fatalf("FromConfig() = %v, %v", d, err)
			}
			if device != tt.wantDevice {
				t.Errorf("device = %q, want %q", device, tt.wantDevice)
			}
		})
	}
}

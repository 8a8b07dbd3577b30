// Package capture owns the camera. A Stream holds one device exclusively
// and keeps only the most recent frame.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
)

var (
	// ErrUnavailable means the capture device could not be opened.
	ErrUnavailable = errors.New("capture unavailable")
	// ErrDeviceBusy means another Stream holds the device.
	ErrDeviceBusy = errors.New("capture device busy")
)

const readErrorBackoff = 200 * time.Millisecond

// Frame is a single decoded camera frame.
type Frame struct {
	Image image.Image
	Seq   uint64
	At    time.Time
}

// Driver opens a frame source. The context passed to Open stays live for as
// long as the stream runs; readers should return once it is done.
type Driver interface {
	Open(ctx context.Context) (Reader, error)
}

// Reader yields frames. ReadFrame returns io.EOF when the source has ended.
type Reader interface {
	ReadFrame() (image.Image, error)
	Close() error
}

var claims = struct {
	sync.Mutex
	held map[string]bool
}{held: make(map[string]bool)}

func claim(device string) error {
	claims.Lock()
	defer claims.Unlock()
	if claims.held[device] {
		return fmt.Errorf("%w: %s", ErrDeviceBusy, device)
	}
	claims.held[device] = true
	return nil
}

func release(device string) {
	claims.Lock()
	delete(claims.held, device)
	claims.Unlock()
}

// Stream is an open capture device.
type Stream struct {
	device  string
	reader  Reader
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	latest  Frame
	has     bool
	lastErr error

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open claims device and starts reading frames from d. The stream must be
// closed to release the device, including when ctx is cancelled.
func Open(ctx context.Context, device string, d Driver, logger *zap.Logger, m *metrics.Metrics) (*Stream, error) {
	if err := claim(device); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	reader, err := d.Open(streamCtx)
	if err != nil {
		cancel()
		release(device)
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, device, err)
	}

	s := &Stream{
		device:  device,
		reader:  reader,
		logger:  logger.With(zap.String("device", device)),
		metrics: m,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.readLoop(streamCtx)
	s.logger.Info("capture opened")
	return s, nil
}

func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.done)

	var seq uint64
	for {
		img, err := s.reader.ReadFrame()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			s.logger.Info("capture source ended")
			return
		}
		if err != nil {
			s.metrics.ReadErrors.Add(1)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.logger.Debug("frame read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		seq++
		s.metrics.FramesRead.Add(1)
		s.mu.Lock()
		s.latest = Frame{Image: img, Seq: seq, At: time.Now()}
		s.has = true
		s.lastErr = nil
		s.mu.Unlock()
	}
}

// Latest returns the newest frame. ok is false until the first frame arrives.
func (s *Stream) Latest() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

// Size is the latest frame's dimensions, or zero before the first frame.
func (s *Stream) Size() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.has {
		return image.Point{}
	}
	return s.latest.Image.Bounds().Size()
}

// Err is the most recent read error, cleared by the next good frame.
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Device is the name the stream was opened with.
func (s *Stream) Device() string { return s.device }

// Close stops reading, closes the driver and releases the device. Only the
// first call does anything.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.closeErr = s.reader.Close()
		release(s.device)
		s.logger.Info("capture closed")
	})
	return s.closeErr
}

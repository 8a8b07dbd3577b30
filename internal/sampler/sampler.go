// Package sampler turns capture frames into classification requests, one at
// a time.
package sampler

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/capture"
	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
	"github.com/RodyMacay/frontend-trash-classifications/internal/poller"
)

type Mode int

const (
	// Continuous samples a centred square on a fixed period.
	Continuous Mode = iota
	// SingleShot samples the full frame when the operator asks.
	SingleShot
)

func (m Mode) String() string {
	if m == SingleShot {
		return "single"
	}
	return "continuous"
}

// ParseMode maps a config value to a Mode. Unknown values are continuous.
func ParseMode(s string) Mode {
	if s == "single" {
		return SingleShot
	}
	return Continuous
}

// FrameSource is the part of a capture stream the sampler reads.
type FrameSource interface {
	Latest() (capture.Frame, bool)
	Size() image.Point
}

// Classifier sends one encoded image for classification.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (client.ClassificationResult, error)
}

type TickResult int

const (
	TickSubmitted TickResult = iota
	TickBusy
	TickNotReady
	TickEncodeFailed
	TickClosed
)

func (r TickResult) String() string {
	switch r {
	case TickSubmitted:
		return "submitted"
	case TickBusy:
		return "busy"
	case TickNotReady:
		return "not-ready"
	case TickEncodeFailed:
		return "encode-failed"
	case TickClosed:
		return "closed"
	}
	return "unknown"
}

// Outcome is the answer to one submitted frame. Exactly one of Result and
// Err is meaningful.
type Outcome struct {
	Seq    uint64
	Mode   Mode
	Result client.ClassificationResult
	Err    error
	At     time.Time
}

type Options struct {
	Mode        Mode
	Interval    time.Duration
	Region      int
	JPEGQuality int
}

// Sampler submits at most one classification request at a time. A tick that
// finds a request in flight is skipped, never queued.
type Sampler struct {
	src     FrameSource
	cls     Classifier
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	task   *poller.Task

	inFlight atomic.Bool
	seq      atomic.Uint64
	out      chan Outcome
}

func New(src FrameSource, cls Classifier, opts Options, logger *zap.Logger, m *metrics.Metrics) *Sampler {
	if opts.Region <= 0 {
		opts.Region = DefaultRegion
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 90
	}
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		src:     src,
		cls:     cls,
		opts:    opts,
		logger:  logger.With(zap.String("mode", opts.Mode.String())),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan Outcome, 1),
	}
}

// Run starts the periodic tick in continuous mode. In single-shot mode it
// does nothing; the caller calls Tick on demand.
func (s *Sampler) Run() {
	if s.opts.Mode != Continuous || s.task != nil {
		return
	}
	s.task = poller.Start(s.ctx, "sampler", s.opts.Interval, false, func(context.Context) {
		s.Tick()
	})
}

// Tick samples the latest frame and submits it unless a request is already
// in flight or the capture surface has no size yet.
func (s *Sampler) Tick() TickResult {
	if s.ctx.Err() != nil {
		return TickClosed
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.TicksBusy.Add(1)
		return TickBusy
	}

	size := s.src.Size()
	frame, ok := s.src.Latest()
	if size.X == 0 || size.Y == 0 || !ok {
		s.inFlight.Store(false)
		s.metrics.TicksNotReady.Add(1)
		return TickNotReady
	}

	var region image.Image
	if s.opts.Mode == SingleShot {
		region = frame.Image
	} else {
		region = CenterSquare(frame.Image, s.opts.Region)
	}
	data, err := EncodeJPEG(region, s.opts.JPEGQuality)
	if err != nil {
		s.inFlight.Store(false)
		s.metrics.EncodeErrors.Add(1)
		s.logger.Warn("frame encode failed", zap.Uint64("frame", frame.Seq), zap.Error(err))
		return TickEncodeFailed
	}

	seq := s.seq.Add(1)
	s.metrics.TicksSubmitted.Add(1)
	go s.submit(seq, data)
	return TickSubmitted
}

func (s *Sampler) submit(seq uint64, data []byte) {
	defer s.inFlight.Store(false)

	// Close does not abort the request; the client timeout bounds it.
	res, err := s.cls.Classify(context.WithoutCancel(s.ctx), data)
	if err != nil {
		s.logger.Info("classification failed", zap.Uint64("seq", seq), zap.Error(err))
	}
	o := Outcome{Seq: seq, Mode: s.opts.Mode, Result: res, Err: err, At: time.Now()}

	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.out <- o:
	case <-s.ctx.Done():
	}
}

// Outcomes delivers results in submission order.
func (s *Sampler) Outcomes() <-chan Outcome { return s.out }

// Busy reports whether a request is in flight.
func (s *Sampler) Busy() bool { return s.inFlight.Load() }

func (s *Sampler) Mode() Mode { return s.opts.Mode }

// Done is closed by Close.
func (s *Sampler) Done() <-chan struct{} { return s.ctx.Done() }

// Close stops the period. A request still in flight finishes but its
// outcome is dropped.
func (s *Sampler) Close() {
	s.cancel()
	if s.task != nil {
		s.task.Stop()
	}
}

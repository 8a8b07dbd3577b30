// Package controller holds the session lifecycle state machine. It performs
// no I/O; each operation returns the remote calls the caller should issue.
package controller

import (
	"time"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
)

type State int

const (
	Idle State = iota
	Starting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Effect is a set of remote calls requested by a transition.
type Effect uint8

const (
	EffectStart Effect = 1 << iota
	EffectStop
	EffectPollActive
	EffectPollCompleted
)

func (e Effect) Has(f Effect) bool { return e&f != 0 }

// Banner texts.
const (
	BannerStartFailed     = "start failed"
	BannerStopFailed      = "stop failed"
	BannerCompletedFailed = "could not load completed sessions"
)

// Controller tracks whether a session is running and reconciles that with
// what the service reports.
type Controller struct {
	state     State
	session   *client.Operacion
	completed []client.OperacionCompletada
	banner    string
	stats     *client.Estadisticas

	// confirmedAt is when the last start/stop confirmation arrived. Poll
	// results issued earlier describe the world before that command.
	confirmedAt time.Time
	now         func() time.Time
}

func New() *Controller {
	return &Controller{now: time.Now}
}

// NewWithClock is New with an injectable clock.
func NewWithClock(now func() time.Time) *Controller {
	return &Controller{now: now}
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Session() *client.Operacion { return c.session }
func (c *Controller) Completed() []client.OperacionCompletada { return c.completed }
func (c *Controller) Banner() string { return c.banner }
func (c *Controller) Stats() *client.Estadisticas { return c.stats }
func (c *Controller) CanStart() bool { return c.state == Idle }
func (c *Controller) CanStop() bool { return c.state == Active && c.session != nil }
func (c *Controller) Busy() bool { return c.state == Starting || c.state == Stopping }
func (c *Controller) ConfirmedAt() time.Time { return c.confirmedAt }

// RequestStart moves Idle to Starting. Any other state ignores it.
func (c *Controller) RequestStart() Effect {
	if c.state != Idle {
		return 0
	}
	c.state = Starting
	c.banner = ""
	return EffectStart
}

func (c *Controller) StartSucceeded() Effect {
	if c.state != Starting {
		return 0
	}
	c.state = Active
	c.confirmedAt = c.now()
	return EffectPollActive
}

func (c *Controller) StartFailed(err error) Effect {
	if c.state != Starting {
		return 0
	}
	c.state = Idle
	c.banner = BannerStartFailed
	return 0
}

// RequestStop needs an active session the console has actually seen.
func (c *Controller) RequestStop() Effect {
	if !c.CanStop() {
		return 0
	}
	c.state = Stopping
	c.banner = ""
	return EffectStop
}

// StopSucceeded stores the final statistics for the summary dialog and
// clears the displayed session.
func (c *Controller) StopSucceeded(stats client.Estadisticas) Effect {
	if c.state != Stopping {
		return 0
	}
	c.state = Idle
	c.session = nil
	c.stats = &stats
	c.confirmedAt = c.now()
	return EffectPollActive | EffectPollCompleted
}

// StopFailed keeps the session running. No dialog is shown.
func (c *Controller) StopFailed(err error) Effect {
	if c.state != Stopping {
		return 0
	}
	c.state = Active
	c.banner = BannerStopFailed
	return 0
}

// ObserveActive reconciles with a poll result. s is nil when the service
// reported no active session. It reports whether the observation was applied.
func (c *Controller) ObserveActive(s *client.Operacion, issuedAt time.Time) bool {
	if issuedAt.Before(c.confirmedAt) {
		return false
	}
	if s != nil && s.Completada {
		s = nil
	}

	switch c.state {
	case Idle:
		if s != nil {
			c.state = Active
		}
	case Active:
		if s == nil {
			c.state = Idle
		}
	case Stopping:
		// The stop answer decides; a failed stop must still have a session to retry.
		if s == nil {
			return true
		}
	}
	c.session = s
	return true
}

// ObserveCompleted replaces the completed list, or raises the banner.
func (c *Controller) ObserveCompleted(list []client.OperacionCompletada, err error) {
	if err != nil {
		c.banner = BannerCompletedFailed
		return
	}
	c.completed = list
}

// DismissStats closes the summary dialog.
func (c *Controller) DismissStats() {
	c.stats = nil
}

func (c *Controller) DismissBanner() {
	c.banner = ""
}

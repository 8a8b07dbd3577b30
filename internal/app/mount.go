package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/capture"
	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/controller"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
	"github.com/RodyMacay/frontend-trash-classifications/internal/poller"
	"github.com/RodyMacay/frontend-trash-classifications/internal/sampler"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/debug"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/result"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/status"
)

// --- messages ---

type mountMsg struct{}

// genMsg wraps a message produced by a mounted component.
type genMsg struct {
	gen uint64
	msg tea.Msg
}

type activeMsg poller.ActiveUpdate

type completedMsg poller.CompletedUpdate

type outcomeMsg sampler.Outcome

type startDoneMsg struct {
	mensaje string
	err     error
}

type stopDoneMsg struct {
	stats *client.Estadisticas
	err   error
}

type cameraMsg struct {
	stream *capture.Stream
	err    error
}

type gaugeFrameMsg struct{}

type noticeClearMsg struct{ seq uint64 }

const noticeDuration = 4 * time.Second

// tagged stamps the message cmd produces with gen. A nil message stays nil.
func tagged(gen uint64, cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		msg := cmd()
		if msg == nil {
			return nil
		}
		return genMsg{gen: gen, msg: msg}
	}
}

// --- mounting ---

func (m Model) switchTab(t Tab) (tea.Model, tea.Cmd) {
	m.unmount()
	m.tab = t
	m.statusBar.ActiveTab = int(t)
	m.overlay = OverlayNone
	m.debug.Addf(debug.KindNav, "switched to %s", tabNames[t])
	return m.mountTab()
}

// mountTab starts the components of the current tab.
func (m Model) mountTab() (tea.Model, tea.Cmd) {
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	mt := &mount{ctx: ctx, cancel: cancel}
	m.mount = mt

	switch m.tab {
	case TabDetection:
		res := result.New()
		res.Width = m.result.Width
		m.result = res
		m.camErr = ""
		m.statusBar.Camera = "opening"
		m.statusBar.Mode = m.samplerOpts.Mode.String()
		return m, tagged(m.gen, openCamera(ctx, m.device, m.driver, m.logger, m.metrics))

	default:
		m.ctrl = controller.New()
		m.detail = ""
		m.syncDashboard()
		mt.active = poller.NewActive(ctx, m.svc, m.activeInterval, m.logger)
		mt.completed = poller.NewCompleted(ctx, m.svc, m.logger)
		cmds := []tea.Cmd{
			tagged(m.gen, waitActive(mt.active)),
			tagged(m.gen, waitCompleted(mt.completed)),
		}
		if m.push != nil {
			m.statusBar.Push = status.PushConnecting
			cmds = append(cmds, tagged(m.gen, m.push.Listen(ctx)))
		}
		return m, tea.Batch(cmds...)
	}
}

// unmount stops everything the current tab started and invalidates its
// pending messages.
func (m *Model) unmount() {
	mt := m.mount
	if mt == nil {
		return
	}
	m.mount = nil
	m.gen++

	mt.cancel()
	if mt.active != nil {
		mt.active.Stop()
	}
	if mt.completed != nil {
		mt.completed.Stop()
	}
	if mt.sampler != nil {
		mt.sampler.Close()
	}
	if mt.stream != nil {
		if err := mt.stream.Close(); err != nil {
			m.logger.Warn("closing capture stream", zap.Error(err))
		}
		m.debug.Addf(debug.KindCamera, "released %s", mt.stream.Device())
	}
	if m.push != nil && m.tab == TabDashboard {
		m.push.Close()
	}

	m.notice = ""
	m.statusBar.Push = status.PushOff
	m.statusBar.Camera = ""
	m.statusBar.Mode = ""
	m.result.Pending = false
}

// shutdown releases everything before the program exits.
func (m *Model) shutdown() {
	m.unmount()
	m.cancel()
}

// --- commands ---

func waitActive(p *poller.ActivePoller) tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-p.Updates():
			return activeMsg(u)
		case <-p.Done():
			return nil
		}
	}
}

func waitCompleted(f *poller.CompletedFetcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-f.Updates():
			return completedMsg(u)
		case <-f.Done():
			return nil
		}
	}
}

func waitOutcome(s *sampler.Sampler) tea.Cmd {
	return func() tea.Msg {
		select {
		case o := <-s.Outcomes():
			return outcomeMsg(o)
		case <-s.Done():
			return nil
		}
	}
}

// startSession and stopSession outlive an unmount; their answers are then
// dropped as stale.
func startSession(ctx context.Context, svc Service) tea.Cmd {
	ctx = context.WithoutCancel(ctx)
	return func() tea.Msg {
		msg, err := svc.StartSession(ctx)
		return startDoneMsg{mensaje: msg, err: err}
	}
}

func stopSession(ctx context.Context, svc Service) tea.Cmd {
	ctx = context.WithoutCancel(ctx)
	return func() tea.Msg {
		stats, err := svc.StopSession(ctx)
		return stopDoneMsg{stats: stats, err: err}
	}
}

func openCamera(ctx context.Context, device string, d capture.Driver, logger *zap.Logger, m *metrics.Metrics) tea.Cmd {
	return func() tea.Msg {
		if d == nil {
			return cameraMsg{err: fmt.Errorf("%w: no capture driver configured", capture.ErrUnavailable)}
		}
		s, err := capture.Open(ctx, device, d, logger, m)
		return cameraMsg{stream: s, err: err}
	}
}

// showNotice displays text until a newer notice replaces it or
// noticeDuration passes.
func (m *Model) showNotice(text string) tea.Cmd {
	m.notice = text
	m.noticeSeq++
	seq := m.noticeSeq
	return tagged(m.gen, tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeClearMsg{seq: seq}
	}))
}

func gaugeFrame() tea.Cmd {
	return tea.Tick(result.FrameInterval, func(time.Time) tea.Msg {
		return gaugeFrameMsg{}
	})
}

// --- helpers ---

func describeActive(s *client.Operacion) string {
	if s == nil {
		return "no active session"
	}
	return fmt.Sprintf("session %d active, %d events", s.ID, len(s.Clasificaciones))
}

func typeName(msg tea.Msg) string {
	return fmt.Sprintf("%T", msg)
}

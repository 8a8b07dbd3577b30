package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/capture"
	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/controller"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
	"github.com/RodyMacay/frontend-trash-classifications/internal/poller"
	"github.com/RodyMacay/frontend-trash-classifications/internal/sampler"
	"github.com/RodyMacay/frontend-trash-classifications/internal/theme"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/debug"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/history"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/operation"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/result"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/stats"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/status"
)

// Tab identifies the mounted page.
type Tab int

const (
	TabDashboard Tab = iota
	TabDetection
)

var tabNames = []string{"Dashboard", "Detection"}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayDebug
)

// Service is the remote classification service as the console uses it.
type Service interface {
	poller.SessionSource
	sampler.Classifier
	StartSession(ctx context.Context) (string, error)
	StopSession(ctx context.Context) (*client.Estadisticas, error)
}

// Options configures the root model.
type Options struct {
	Service        Service
	Push           *client.WSClient // nil disables push updates
	Driver         capture.Driver
	Device         string
	Sampler        sampler.Options
	ActiveInterval time.Duration
	BaseURL        string
	GlamourStyle   string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Model is the root Bubble Tea model.
type Model struct {
	svc            Service
	push           *client.WSClient
	driver         capture.Driver
	device         string
	samplerOpts    sampler.Options
	activeInterval time.Duration
	glamourStyle   string
	logger         *zap.Logger
	metrics        *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	width   int
	height  int

	// Mounting. Every message from a mounted component carries gen; a
	// message with an older gen belongs to a tab that has since unmounted.
	tab   Tab
	gen   uint64
	mount *mount

	overlay Overlay
	detail  string

	ctrl      *controller.Controller
	statusBar status.Model
	operation operation.Model
	history   history.Model
	result    result.Model
	debug     debug.Model
	camErr    string

	// notice is the last command confirmation, cleared after noticeDuration.
	notice    string
	noticeSeq uint64

	spinning  bool
	animating bool
}

// mount holds what the current tab started. unmount releases all of it.
type mount struct {
	ctx       context.Context
	cancel    context.CancelFunc
	active    *poller.ActivePoller
	completed *poller.CompletedFetcher
	stream    *capture.Stream
	sampler   *sampler.Sampler
}

// New creates the root model. Nothing is started until Init.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.ActiveInterval <= 0 {
		opts.ActiveInterval = 5 * time.Second
	}
	if opts.GlamourStyle == "" {
		opts.GlamourStyle = "dark"
	}

	sb := status.New(tabNames)
	sb.BaseURL = opts.BaseURL

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorAccent)

	return Model{
		svc:            opts.Service,
		push:           opts.Push,
		driver:         opts.Driver,
		device:         opts.Device,
		samplerOpts:    opts.Sampler,
		activeInterval: opts.ActiveInterval,
		glamourStyle:   opts.GlamourStyle,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		ctx:            ctx,
		cancel:         cancel,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		spinner:        sp,
		ctrl:           controller.New(),
		statusBar:      sb,
		operation:      operation.New(),
		history:        history.New(),
		result:         result.New(),
		debug:          debug.New(),
	}
}

// Init mounts the Dashboard tab.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return mountMsg{} }
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.operation.Width = msg.Width
		m.history.Width = msg.Width
		m.result.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case mountMsg:
		if m.mount != nil {
			return m, nil
		}
		return m.mountTab()

	case genMsg:
		if m.mount == nil || msg.gen != m.gen {
			m.discard(msg.msg)
			return m, nil
		}
		return m.handleMounted(msg.msg)

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case gaugeFrameMsg:
		if m.result.Step() {
			return m, gaugeFrame()
		}
		m.animating = false
		return m, nil
	}

	return m, nil
}

// handleMounted applies a message from a component of the current mount.
func (m Model) handleMounted(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activeMsg:
		if m.ctrl.ObserveActive(msg.Session, msg.IssuedAt) {
			m.debug.AddAt(msg.IssuedAt, debug.KindPoll, describeActive(msg.Session))
		} else {
			m.debug.Add(debug.KindPoll, "stale poll result dropped")
		}
		m.syncDashboard()
		return m, tagged(m.gen, waitActive(m.mount.active))

	case completedMsg:
		m.ctrl.ObserveCompleted(msg.Sessions, msg.Err)
		if msg.Err != nil {
			m.debug.Addf(debug.KindError, "completed sessions: %v", msg.Err)
		} else {
			m.debug.Addf(debug.KindPoll, "%d completed sessions", len(msg.Sessions))
		}
		m.syncDashboard()
		return m, tagged(m.gen, waitCompleted(m.mount.completed))

	case startDoneMsg:
		var eff controller.Effect
		if msg.err != nil {
			m.debug.Addf(debug.KindError, "start: %v", msg.err)
			eff = m.ctrl.StartFailed(msg.err)
		} else {
			m.debug.Addf(debug.KindCommand, "start confirmed: %s", msg.mensaje)
			eff = m.ctrl.StartSucceeded()
			if eff != 0 {
				notice := msg.mensaje
				if notice == "" {
					notice = "Session started"
				}
				hide := m.showNotice(notice)
				cmd := m.apply(eff)
				return m, tea.Batch(cmd, hide)
			}
		}
		cmd := m.apply(eff)
		return m, cmd

	case noticeClearMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case stopDoneMsg:
		var eff controller.Effect
		if msg.err != nil {
			m.debug.Addf(debug.KindError, "stop: %v", msg.err)
			eff = m.ctrl.StopFailed(msg.err)
		} else {
			var s client.Estadisticas
			if msg.stats != nil {
				s = *msg.stats
			}
			m.debug.Addf(debug.KindCommand, "stop confirmed: %d classifications", s.TotalClasificaciones)
			eff = m.ctrl.StopSucceeded(s)
		}
		cmd := m.apply(eff)
		return m, cmd

	case client.WSConnectedMsg:
		m.statusBar.Push = status.PushConnected
		m.debug.Add(debug.KindPush, "connected")
		return m, tagged(m.gen, m.push.ReadLoop(m.mount.ctx))

	case client.WSDisconnectedMsg:
		m.statusBar.Push = status.PushConnecting
		m.debug.Addf(debug.KindPush, "disconnected: %v", msg.Err)
		return m, tagged(m.gen, m.push.Listen(m.mount.ctx))

	case client.WSActiveMsg:
		if m.ctrl.ObserveActive(msg.Session, msg.ReceivedAt) {
			m.debug.Addf(debug.KindPush, "#%d %s", msg.Seq, describeActive(msg.Session))
		}
		m.syncDashboard()
		return m, tagged(m.gen, m.push.ReadLoop(m.mount.ctx))

	case client.WSErrorMsg:
		m.debug.Addf(debug.KindError, "push: %s", string(msg.Raw))
		return m, tagged(m.gen, m.push.ReadLoop(m.mount.ctx))

	case cameraMsg:
		if msg.err != nil {
			// Shown once; the Detection tab stays inert until remounted.
			m.camErr = msg.err.Error()
			m.statusBar.Camera = "unavailable"
			m.debug.Addf(debug.KindError, "camera: %v", msg.err)
			return m, nil
		}
		s := sampler.New(msg.stream, m.svc, m.samplerOpts, m.logger, m.metrics)
		m.mount.stream = msg.stream
		m.mount.sampler = s
		s.Run()
		m.statusBar.Camera = "live " + msg.stream.Device()
		m.debug.Addf(debug.KindCamera, "opened %s", msg.stream.Device())
		return m, tagged(m.gen, waitOutcome(s))

	case outcomeMsg:
		var cmd tea.Cmd
		if msg.Err != nil {
			m.debug.Addf(debug.KindError, "classify #%d: %v", msg.Seq, msg.Err)
			if msg.Mode == sampler.SingleShot {
				m.result.SetError("classification failed")
			} else {
				m.result.Pending = false
			}
		} else {
			m.result.SetResult(msg.Result, msg.At)
			m.debug.Addf(debug.KindClassify, "#%d %s %s", msg.Seq, msg.Result.TipoMaterial,
				theme.FormatConfidence(float64(msg.Result.Confianza)))
			cmd = m.animate()
		}
		return m, tea.Batch(tagged(m.gen, waitOutcome(m.mount.sampler)), cmd)
	}
	return m, nil
}

// discard drops a message from an unmounted component. A camera that
// finished opening after its tab was left is closed here.
func (m *Model) discard(msg tea.Msg) {
	if c, ok := msg.(cameraMsg); ok && c.stream != nil {
		if err := c.stream.Close(); err != nil {
			m.logger.Warn("closing stale capture stream", zap.Error(err))
		}
	}
	m.logger.Debug("stale message dropped", zap.String("type", typeName(msg)))
}

// apply issues the remote calls a controller transition asked for.
func (m *Model) apply(eff controller.Effect) tea.Cmd {
	var cmds []tea.Cmd
	if eff.Has(controller.EffectStart) {
		cmds = append(cmds, tagged(m.gen, startSession(m.mount.ctx, m.svc)))
	}
	if eff.Has(controller.EffectStop) {
		cmds = append(cmds, tagged(m.gen, stopSession(m.mount.ctx, m.svc)))
	}
	if eff.Has(controller.EffectPollActive) && m.mount.active != nil {
		m.mount.active.Kick()
	}
	if eff.Has(controller.EffectPollCompleted) && m.mount.completed != nil {
		m.mount.completed.Kick()
	}
	if m.busy() {
		cmds = append(cmds, m.spin())
	}
	m.syncDashboard()
	return tea.Batch(cmds...)
}

// syncDashboard copies controller state into the views.
func (m *Model) syncDashboard() {
	state := m.ctrl.State().String()
	m.operation.State = state
	m.operation.Session = m.ctrl.Session()
	m.operation.CanStart = m.ctrl.CanStart()
	m.operation.CanStop = m.ctrl.CanStop()
	m.history.SetSessions(m.ctrl.Completed())
	m.statusBar.State = state
}

func (m Model) busy() bool {
	return m.ctrl.Busy() || m.result.Pending
}

func (m *Model) spin() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) animate() tea.Cmd {
	if m.animating {
		return nil
	}
	m.animating = true
	return gaugeFrame()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.shutdown()
		return m, tea.Quit
	}

	// The statistics dialog stays up until the operator dismisses it.
	if m.tab == TabDashboard && m.ctrl.Stats() != nil && m.overlay == OverlayNone {
		if key.Matches(msg, m.keys.Enter, m.keys.Escape) {
			m.ctrl.DismissStats()
		}
		return m, nil
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Tab):
		return m.switchTab((m.tab + 1) % Tab(len(tabNames)))

	case key.Matches(msg, m.keys.Dashboard):
		if m.tab != TabDashboard {
			return m.switchTab(TabDashboard)
		}
		return m, nil

	case key.Matches(msg, m.keys.Detection):
		if m.tab != TabDetection {
			return m.switchTab(TabDetection)
		}
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.ctrl.DismissBanner()
		m.result.Err = ""
		m.notice = ""
		return m, nil
	}

	if m.tab == TabDashboard {
		return m.handleDashboardKey(msg)
	}
	return m.handleDetectionKey(msg)
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Start):
		eff := m.ctrl.RequestStart()
		if eff == 0 {
			m.debug.Addf(debug.KindCommand, "start ignored while %s", m.ctrl.State())
			return m, nil
		}
		m.debug.Add(debug.KindCommand, "start requested")
		cmd := m.apply(eff)
		return m, cmd

	case key.Matches(msg, m.keys.Stop):
		eff := m.ctrl.RequestStop()
		if eff == 0 {
			m.debug.Addf(debug.KindCommand, "stop ignored while %s", m.ctrl.State())
			return m, nil
		}
		m.debug.Add(debug.KindCommand, "stop requested")
		cmd := m.apply(eff)
		return m, cmd

	case key.Matches(msg, m.keys.Down):
		m.history.Next()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.history.Prev()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		s, ok := m.history.Current()
		if !ok {
			return m, nil
		}
		out, err := history.RenderDetail(s, m.width, m.glamourStyle)
		if err != nil {
			m.debug.Addf(debug.KindError, "render session %d: %v", s.ID, err)
			return m, nil
		}
		m.detail = out
		m.overlay = OverlayDetail
		return m, nil
	}
	return m, nil
}

func (m Model) handleDetectionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Capture) {
		return m, nil
	}
	if m.mount == nil || m.mount.sampler == nil {
		m.debug.Add(debug.KindCamera, "capture ignored: camera not open")
		return m, nil
	}

	switch r := m.mount.sampler.Tick(); r {
	case sampler.TickSubmitted:
		m.result.Pending = true
		m.result.Err = ""
		cmd := m.spin()
		return m, cmd
	default:
		m.debug.Addf(debug.KindCamera, "capture skipped: %s", r)
	}
	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch {
	case m.overlay == OverlayDebug:
		body = m.debug.View(m.width, m.height-4)
	case m.overlay == OverlayDetail:
		body = m.detail
	case m.tab == TabDashboard && m.ctrl.Stats() != nil:
		body = lipgloss.Place(m.width, max(m.height-6, 12), lipgloss.Center, lipgloss.Center,
			stats.View(*m.ctrl.Stats()))
	case m.tab == TabDashboard:
		body = m.viewDashboard()
	default:
		body = m.viewDetection()
	}

	sections := []string{m.statusBar.View()}
	if m.tab == TabDashboard && m.ctrl.Banner() != "" {
		sections = append(sections, theme.StyleBanner.Render(m.ctrl.Banner()+"  [esc] dismiss"))
	}
	if m.tab == TabDashboard && m.notice != "" {
		sections = append(sections, theme.StyleNotice.Render(m.notice))
	}
	sections = append(sections, body, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewDashboard() string {
	op := m.operation
	if m.ctrl.Busy() {
		op.Spinner = m.spinner.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, op.View(), m.history.View())
}

func (m Model) viewDetection() string {
	if m.camErr != "" {
		return theme.StyleBanner.Render("Camera unavailable: " + m.camErr)
	}
	header := theme.StyleDimmed.Render("Mode: " + m.samplerOpts.Mode.String())
	if m.mount == nil || m.mount.stream == nil {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("Opening camera..."))
	}
	if size := m.mount.stream.Size(); size.X > 0 {
		header = theme.StyleDimmed.Render(fmt.Sprintf("Mode: %s  Frame: %dx%d", m.samplerOpts.Mode, size.X, size.Y))
	}
	lines := []string{header, m.result.View()}
	if m.result.Pending {
		lines = append(lines, m.spinner.View()+" classifying")
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

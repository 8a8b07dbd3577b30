// Package operation renders the active session panel: the controller state,
// the session header and its classification events, newest first.
package operation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/theme"
)

const defaultMaxEvents = 12

// Model holds what the panel shows. The root model copies controller state
// into it before each render.
type Model struct {
	Width     int
	MaxEvents int
	State     string
	Session   *client.Operacion
	CanStart  bool
	CanStop   bool
	Spinner   string // shown while a command is pending
}

func New() Model {
	return Model{MaxEvents: defaultMaxEvents, State: "idle"}
}

func (m Model) View() string {
	width := max(m.Width, 40)

	lines := []string{m.renderHeader()}
	if m.Session == nil {
		lines = append(lines, theme.StyleDimmed.Render("No active session"))
	} else {
		lines = append(lines, m.renderSession(m.Session)...)
	}
	lines = append(lines, "", m.renderControls())

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderHeader() string {
	stateColor := theme.StateColor(m.State)
	state := lipgloss.NewStyle().Foreground(stateColor).Bold(true).
		Render(theme.StateGlyph(m.State) + " " + m.State)
	title := theme.StyleHeader.Render("Active session")
	if m.Spinner != "" {
		state += " " + m.Spinner
	}
	return title + "  " + state
}

func (m Model) renderSession(s *client.Operacion) []string {
	lines := []string{
		fmt.Sprintf("#%d  started %s", s.ID, s.FechaInicio.Local().Format("2006-01-02 15:04:05")),
	}
	if s.Descripcion != "" {
		lines = append(lines, theme.StyleDimmed.Render(s.Descripcion))
	}
	lines = append(lines, theme.StyleHeader.Render(fmt.Sprintf("Total: %d", len(s.Clasificaciones))))

	if len(s.Clasificaciones) == 0 {
		return append(lines, theme.StyleDimmed.Render("No classifications yet"))
	}

	limit := m.MaxEvents
	if limit <= 0 {
		limit = defaultMaxEvents
	}
	for _, ev := range NewestFirst(s.Clasificaciones, limit) {
		lines = append(lines, renderEvent(ev))
	}
	if hidden := len(s.Clasificaciones) - limit; hidden > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("… %d older", hidden)))
	}
	return lines
}

func renderEvent(ev client.Clasificacion) string {
	label := theme.MaterialStyle(ev.TipoMaterial).Render(ev.TipoMaterial)
	conf := theme.FormatConfidence(float64(ev.Confianza)) + " confidence"
	ts := theme.StyleDimmed.Render(ev.CreatedAt.Local().Format("15:04:05"))
	return fmt.Sprintf("%s %s  %s", label, conf, ts)
}

func (m Model) renderControls() string {
	start := theme.StyleDimmed.Render("[s] start")
	if m.CanStart {
		start = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("[s] start")
	}
	stop := theme.StyleDimmed.Render("[x] stop")
	if m.CanStop {
		stop = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("[x] stop")
	}
	return strings.Join([]string{start, stop}, "  ")
}

// NewestFirst returns up to limit events ordered by timestamp, newest first.
// Events with equal timestamps keep reverse insertion order.
func NewestFirst(events []client.Clasificacion, limit int) []client.Clasificacion {
	out := make([]client.Clasificacion, len(events))
	for i, ev := range events {
		out[len(events)-1-i] = ev
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

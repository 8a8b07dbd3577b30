// Package history renders the completed-session list and the markdown
// detail overlay for a selected session.
package history

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/theme"
)

// Model holds the completed-session list and the selection cursor.
type Model struct {
	Width    int
	Sessions []client.OperacionCompletada
	Selected int
	MaxRows  int
}

func New() Model {
	return Model{MaxRows: 8}
}

// SetSessions replaces the list, keeping the cursor in range.
func (m *Model) SetSessions(list []client.OperacionCompletada) {
	m.Sessions = list
	if m.Selected >= len(list) {
		m.Selected = max(len(list)-1, 0)
	}
}

func (m *Model) Next() {
	if len(m.Sessions) > 0 {
		m.Selected = (m.Selected + 1) % len(m.Sessions)
	}
}

func (m *Model) Prev() {
	if len(m.Sessions) > 0 {
		m.Selected = (m.Selected - 1 + len(m.Sessions)) % len(m.Sessions)
	}
}

// Current returns the selected session, if any.
func (m Model) Current() (client.OperacionCompletada, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Sessions) {
		return client.OperacionCompletada{}, false
	}
	return m.Sessions[m.Selected], true
}

func (m Model) View() string {
	width := max(m.Width, 40)
	header := theme.StyleHeader.Render(fmt.Sprintf("Completed sessions (%d)", len(m.Sessions)))

	lines := []string{header}
	if len(m.Sessions) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("No completed sessions"))
	}

	start, end := window(m.Selected, len(m.Sessions), m.MaxRows)
	for i := start; i < end; i++ {
		s := m.Sessions[i]
		prefix := "  "
		title := fmt.Sprintf("#%d  %s  %s  total %d",
			s.ID, s.FechaInicio.Local().Format("2006-01-02 15:04"), Duration(s), s.TotalClasificaciones)
		if i == m.Selected {
			prefix = "> "
			title = theme.StyleSelected.Render(title)
		}
		lines = append(lines, prefix+title)
		if badges := Badges(s.PorTipo); badges != "" {
			lines = append(lines, "    "+badges)
		}
	}
	if end < len(m.Sessions) {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  … %d more", len(m.Sessions)-end)))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// window picks the visible row range around the cursor.
func window(selected, n, rows int) (int, int) {
	if rows <= 0 || n <= rows {
		return 0, n
	}
	start := selected - rows/2
	start = max(0, min(start, n-rows))
	return start, start + rows
}

// Badges renders "label: count" badges sorted by label.
func Badges(porTipo map[string]int) string {
	labels := SortedLabels(porTipo)
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, theme.Badge(l, porTipo[l]))
	}
	return strings.Join(parts, " ")
}

// SortedLabels returns the keys of porTipo in a stable order.
func SortedLabels(porTipo map[string]int) []string {
	labels := make([]string, 0, len(porTipo))
	for l := range porTipo {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Duration is how long a finished session ran, or "-" if unknown.
func Duration(s client.OperacionCompletada) string {
	if s.FechaFin == nil || s.FechaInicio.IsZero() {
		return "-"
	}
	return s.FechaFin.Sub(s.FechaInicio).Round(time.Second).String()
}

// Markdown describes a session for the detail overlay.
func Markdown(s client.OperacionCompletada) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session #%d\n\n", s.ID)
	if s.Descripcion != "" {
		fmt.Fprintf(&b, "%s\n\n", s.Descripcion)
	}
	fmt.Fprintf(&b, "- **Started:** %s\n", s.FechaInicio.Local().Format("2006-01-02 15:04:05"))
	if s.FechaFin != nil {
		fmt.Fprintf(&b, "- **Finished:** %s\n", s.FechaFin.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "- **Duration:** %s\n", Duration(s))
	fmt.Fprintf(&b, "- **Classifications:** %d\n\n", s.TotalClasificaciones)

	if len(s.PorTipo) > 0 {
		b.WriteString("| Material | Count | Share |\n|---|---:|---:|\n")
		for _, l := range SortedLabels(s.PorTipo) {
			n := s.PorTipo[l]
			share := 0.0
			if s.TotalClasificaciones > 0 {
				share = float64(n) / float64(s.TotalClasificaciones)
			}
			fmt.Fprintf(&b, "| %s | %d | %s |\n", l, n, theme.FormatConfidence(share))
		}
	}
	return b.String()
}

// RenderDetail renders Markdown(s) for the terminal. style is a glamour
// standard style name such as "dark" or "notty".
func RenderDetail(s client.OperacionCompletada, width int, style string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(Markdown(s))
	if err != nil {
		return "", err
	}
	footer := theme.StyleDimmed.Render("[esc] close")
	return theme.StyleBorder.Padding(0, 1).Render(strings.TrimRight(out, "\n") + "\n\n" + footer), nil
}

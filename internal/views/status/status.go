package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RodyMacay/frontend-trash-classifications/internal/theme"
)

// PushState describes the optional WebSocket subscription.
type PushState int

const (
	PushOff PushState = iota
	PushConnecting
	PushConnected
)

// Model holds the status bar state.
type Model struct {
	Tabs      []string
	ActiveTab int
	State     string // session controller state
	Push      PushState
	Camera    string // capture status, empty when the Detection tab is not mounted
	Mode      string
	BaseURL   string
	Width     int
}

// New creates a status bar model.
func New(tabs []string) Model {
	return Model{Tabs: tabs, State: "idle"}
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	var tabs []string
	for i, t := range m.Tabs {
		label := fmt.Sprintf("%d %s", i+1, t)
		if i == m.ActiveTab {
			tabs = append(tabs, theme.StyleSelected.Underline(true).Render(label))
		} else {
			tabs = append(tabs, theme.StyleDimmed.Render(label))
		}
	}

	state := lipgloss.NewStyle().Foreground(theme.StateColor(m.State)).
		Render(theme.StateGlyph(m.State) + " " + m.State)

	parts := []string{strings.Join(tabs, "  "), state}

	switch m.Push {
	case PushConnected:
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● push"))
	case PushConnecting:
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ push connecting..."))
	}

	if m.Camera != "" {
		parts = append(parts, theme.StyleDimmed.Render("cam: "+m.Camera))
	}
	if m.Mode != "" {
		parts = append(parts, theme.StyleDimmed.Render("mode: "+m.Mode))
	}
	if m.BaseURL != "" {
		parts = append(parts, theme.StyleDimmed.Render(m.BaseURL))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := strings.Join(parts, sep)

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}

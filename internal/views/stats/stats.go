// Package stats renders the final-statistics dialog shown after a session
// is stopped.
package stats

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/theme"
	"github.com/RodyMacay/frontend-trash-classifications/internal/views/history"
)

const panelWidth = 48

var stylePanel = lipgloss.NewStyle().
	BorderStyle(lipgloss.DoubleBorder()).
	BorderForeground(theme.ColorHealthy).
	Padding(1, 2).
	Width(panelWidth)

// View renders the dialog for s.
func View(s client.Estadisticas) string {
	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("Session finished") + "\n\n")
	b.WriteString(fmt.Sprintf("Total classifications: %d\n", s.TotalClasificaciones))

	if len(s.PorTipo) > 0 {
		b.WriteString("\n")
		for _, l := range history.SortedLabels(s.PorTipo) {
			b.WriteString(theme.Badge(l, s.PorTipo[l]) + "\n")
		}
	} else {
		b.WriteString(theme.StyleDimmed.Render("Nothing was classified") + "\n")
	}

	b.WriteString("\n" + theme.StyleDimmed.Render("[enter] dismiss"))
	return stylePanel.Render(b.String())
}

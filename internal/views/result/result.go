// Package result renders the latest classification verdict with an animated
// confidence gauge.
package result

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/theme"
)

const (
	gaugeWidth = 30
	fps        = 60
	settleEps  = 0.001
)

// FrameInterval is the gauge animation step.
const FrameInterval = time.Second / fps

// Model holds the last successful result. A failed request in continuous
// mode leaves it in place.
type Model struct {
	Result   *client.ClassificationResult
	At       time.Time
	Err      string
	Width    int
	Pending  bool
	Captured uint64 // results received this mount

	spring   harmonica.Spring
	gauge    float64
	velocity float64
}

func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.6)}
}

// SetResult shows r and clears any error.
func (m *Model) SetResult(r client.ClassificationResult, at time.Time) {
	m.Result = &r
	m.At = at
	m.Err = ""
	m.Pending = false
	m.Captured++
}

// SetError shows a classification failure without dropping the last result.
func (m *Model) SetError(msg string) {
	m.Err = msg
	m.Pending = false
}

func (m *Model) target() float64 {
	if m.Result == nil {
		return 0
	}
	return float64(m.Result.Confianza)
}

// Step advances the gauge one frame and reports whether it is still moving.
func (m *Model) Step() bool {
	m.gauge, m.velocity = m.spring.Update(m.gauge, m.velocity, m.target())
	if math.Abs(m.gauge-m.target()) < settleEps && math.Abs(m.velocity) < settleEps {
		m.gauge, m.velocity = m.target(), 0
		return false
	}
	return true
}

// Settled reports whether the gauge shows the current confidence.
func (m Model) Settled() bool {
	return m.gauge == m.target() && m.velocity == 0
}

func (m Model) View() string {
	width := max(m.Width, 40)

	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("Latest result") + "\n")

	if m.Result == nil {
		if m.Pending {
			b.WriteString(theme.StyleDimmed.Render("Classifying..."))
		} else {
			b.WriteString(theme.StyleDimmed.Render("No results yet"))
		}
	} else {
		r := m.Result
		b.WriteString(theme.MaterialStyle(r.TipoMaterial).Bold(true).Render(r.TipoMaterial))
		b.WriteString("  ")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorBright).Render(theme.FormatConfidence(float64(r.Confianza))))
		b.WriteString("\n")
		b.WriteString(renderGauge(m.gauge, gaugeWidth))
		b.WriteString("\n")
		if len(r.DetectedCategories) > 0 {
			b.WriteString(theme.StyleDimmed.Render("Categories: " + strings.Join(r.DetectedCategories, ", ")))
			b.WriteString("\n")
		}
		b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("%s  #%d", m.At.Format("15:04:05"), m.Captured)))
	}

	if m.Err != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("Error: " + m.Err))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(b.String())
}

func renderGauge(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(theme.ConfidenceColor(pct)).Render(bar)
}

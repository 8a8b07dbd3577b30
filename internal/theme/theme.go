// Package theme provides the Lip Gloss color palette and reusable styles
// for the classification console. It is a leaf package with no internal
// imports to avoid import cycles.
package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Material colors, foreground on background.
var (
	ColorMetalFg   = lipgloss.Color("#1e40af")
	ColorMetalBg   = lipgloss.Color("#dbeafe")
	ColorPlasticFg = lipgloss.Color("#166534")
	ColorPlasticBg = lipgloss.Color("#dcfce7")
	ColorPaperFg   = lipgloss.Color("#854d0e")
	ColorPaperBg   = lipgloss.Color("#fef9c3")
	ColorGlassFg   = lipgloss.Color("#6b21a8")
	ColorGlassBg   = lipgloss.Color("#f3e8ff")
	ColorOrganicFg = lipgloss.Color("#9a3412")
	ColorOrganicBg = lipgloss.Color("#ffedd5")
	ColorDefaultFg = lipgloss.Color("#1f2937")
	ColorDefaultBg = lipgloss.Color("#f3f4f6")
)

// Session state colors.
var (
	ColorIdle     = lipgloss.Color("#4b5563")
	ColorStarting = lipgloss.Color("#7c3aed")
	ColorActive   = lipgloss.Color("#16a34a")
	ColorStopping = lipgloss.Color("#d97706")
)

// Confidence gauge thresholds.
var (
	ColorConfidenceLow  = lipgloss.Color("#dc2626") // <50%
	ColorConfidenceMid  = lipgloss.Color("#d97706") // 50-80%
	ColorConfidenceHigh = lipgloss.Color("#22c55e") // >80%
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorAccent  = lipgloss.Color("#3b82f6")
)

// Material is a known material category.
type Material int

const (
	MaterialUnknown Material = iota
	MaterialMetal
	MaterialPlastic
	MaterialPaper
	MaterialGlass
	MaterialOrganic
)

// MaterialOf maps a classifier label to its category. The service answers
// in Spanish; some models report English class names.
func MaterialOf(label string) Material {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "metal", "lata", "can":
		return MaterialMetal
	case "plastico", "plástico", "plastic", "bottle":
		return MaterialPlastic
	case "papel", "carton", "cartón", "paper", "cardboard":
		return MaterialPaper
	case "vidrio", "glass":
		return MaterialGlass
	case "organico", "orgánico", "organic":
		return MaterialOrganic
	default:
		return MaterialUnknown
	}
}

// MaterialStyle returns the badge style for a label. Unknown labels get the
// default style.
func MaterialStyle(label string) lipgloss.Style {
	fg, bg := ColorDefaultFg, ColorDefaultBg
	switch MaterialOf(label) {
	case MaterialMetal:
		fg, bg = ColorMetalFg, ColorMetalBg
	case MaterialPlastic:
		fg, bg = ColorPlasticFg, ColorPlasticBg
	case MaterialPaper:
		fg, bg = ColorPaperFg, ColorPaperBg
	case MaterialGlass:
		fg, bg = ColorGlassFg, ColorGlassBg
	case MaterialOrganic:
		fg, bg = ColorOrganicFg, ColorOrganicBg
	}
	return lipgloss.NewStyle().Foreground(fg).Background(bg).Padding(0, 1)
}

// Badge renders "label: count" in the label's style.
func Badge(label string, count int) string {
	return MaterialStyle(label).Render(fmt.Sprintf("%s: %d", label, count))
}

// FormatConfidence renders a fraction as a percentage with two decimals.
func FormatConfidence(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

// ConfidenceColor returns the gauge color for a fraction.
func ConfidenceColor(f float64) lipgloss.Color {
	switch {
	case f > 0.8:
		return ColorConfidenceHigh
	case f >= 0.5:
		return ColorConfidenceMid
	default:
		return ColorConfidenceLow
	}
}

// StateColor returns the color for a session controller state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "idle":
		return ColorIdle
	case "starting":
		return ColorStarting
	case "active":
		return ColorActive
	case "stopping":
		return ColorStopping
	default:
		return ColorDimmed
	}
}

// StateGlyph returns a Unicode glyph for a session controller state name.
func StateGlyph(state string) string {
	switch state {
	case "idle":
		return "○"
	case "starting":
		return "◎"
	case "active":
		return "●"
	case "stopping":
		return "◌"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleBanner = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		Background(ColorDanger).
		Padding(0, 1)

	StyleNotice = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		Background(ColorHealthy).
		Padding(0, 1)
)

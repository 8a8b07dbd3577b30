package theme

import (
	"strings"
	"testing"
)

func TestFormatConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.87, "87.00%"},
		{0, "0.00%"},
		{1, "100.00%"},
		{0.12345, "12.35%"},
	}
	for _, tt := range tests {
		if got := FormatConfidence(tt.in); got != tt.want {
			t.Errorf("FormatConfidence(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaterialOf(t *testing.T) {
	tests := []struct {
		label string
		want  Material
	}{
		{"metal", MaterialMetal},
		{"Plastico", MaterialPlastic},
		{"plástico", MaterialPlastic},
		{" papel ", MaterialPaper},
		{"glass", MaterialGlass},
		{"VIDRIO", MaterialGlass},
		{"organico", MaterialOrganic},
		{"textil", MaterialUnknown},
		{"", MaterialUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := MaterialOf(tt.label); got != tt.want {
				t.Errorf("MaterialOf(%q) = %d, want %d", tt.label, got, tt.want)
			}
		})
	}
}

func TestMaterialStyleIsTotal(t *testing.T) {
	// Unknown labels fall back to the default colors rather than failing.
	unknown := MaterialStyle("no-such-material")
	if unknown.GetForeground() != ColorDefaultFg || unknown.GetBackground() != ColorDefaultBg {
		t.Errorf("unknown label style = %v/%v", unknown.GetForeground(), unknown.GetBackground())
	}
	if got := MaterialStyle("metal").GetForeground(); got != ColorMetalFg {
		t.Errorf("metal foreground = %v", got)
	}
}

func TestBadgeText(t *testing.T) {
	if got := Badge("metal", 5); !strings.Contains(got, "metal: 5") {
		t.Errorf("Badge() = %q", got)
	}
}

func TestConfidenceColor(t *testing.T) {
	if ConfidenceColor(0.9) != ColorConfidenceHigh || ConfidenceColor(0.6) != ColorConfidenceMid || ConfidenceColor(0.2) != ColorConfidenceLow {
		t.Error("confidence thresholds wrong")
	}
}

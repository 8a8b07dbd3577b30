package stats

import (
	"strings"
	"testing"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
)

func TestViewShowsTotalAndBadges(t *testing.T) {
	v := View(client.Estadisticas{
		TotalClasificaciones: 12,
		PorTipo:              map[string]int{"metal": 5, "plastico": 7},
	})
	for _, want := range []string{"Total classifications: 12", "metal: 5", "plastico: 7", "dismiss"} {
		if !strings.Contains(v, want) {
			t.Errorf("dialog missing %q:\n%s", want, v)
		}
	}
	if strings.Count(v, ": 5") != 1 || strings.Count(v, ": 7") != 1 {
		t.Errorf("expected exactly two badges:\n%s", v)
	}
}

func TestViewEmpty(t *testing.T) {
	v := View(client.Estadisticas{})
	if !strings.Contains(v, "Total classifications: 0") || !strings.Contains(v, "Nothing was classified") {
		t.Errorf("dialog = %q", v)
	}
}

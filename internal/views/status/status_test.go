package status

import (
	"strings"
	"testing"
)

func TestViewShowsTabsAndState(t *testing.T) {
	m := New([]string{"Dashboard", "Detection"})
	m.Width = 120
	m.ActiveTab = 1
	m.State = "active"
	m.Camera = "live 640x480"
	m.Mode = "continuous"

	v := m.View()
	for _, want := range []string{"1 Dashboard", "2 Detection", "active", "cam: live 640x480", "mode: continuous"} {
		if !strings.Contains(v, want) {
			t.Errorf("status bar missing %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "push") {
		t.Error("push indicator shown while push is off")
	}
}

func TestViewPushStates(t *testing.T) {
	m := New([]string{"Dashboard"})
	m.Width = 100

	m.Push = PushConnecting
	if !strings.Contains(m.View(), "push connecting") {
		t.Error("connecting push not shown")
	}
	m.Push = PushConnected
	if v := m.View(); !strings.Contains(v, "push") || strings.Contains(v, "connecting") {
		t.Errorf("connected push view = %q", v)
	}
}

package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestOperationError(t *testing.T) {
	base := errors.New("connection refused")

	err := NewOperationError("client.classify", "req-1", base)
	if !errors.Is(err, base) {
		t.Fatal("errors.Is should see the wrapped error")
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatal("errors.As should find *OperationError")
	}
	if opErr.Operation != "client.classify" {
		t.Errorf("Operation = %q", opErr.Operation)
	}
	if got := err.Error(); got != "client.classify (request_id=req-1): connection refused" {
		t.Errorf("Error() = %q", got)
	}

	noID := NewOperationError("client.stop", "", base)
	if got := noID.Error(); got != "client.stop: connection refused" {
		t.Errorf("Error() without request id = %q", got)
	}
}

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("op", "id", nil); err != nil {
		t.Fatalf("NewOperationError(nil) = %v, want nil", err)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := New(path, "debug")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	WithOperation(logger, "poller.active", "abc").Debug("poll finished", zap.Bool("found", false))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"operation":"poller.active"`, `"request_id":"abc"`, `"found":false`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log output missing %s: %s", want, data)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("", "loud"); err == nil {
		t.Fatal("New() with unknown level should fail")
	}
}

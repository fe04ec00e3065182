package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFakePing(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ping")
	script := "#!/bin/sh\nexit " + itoa(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ping: %v", err)
	}
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestPingReachableHost(t *testing.T) {
	p := NewPinger()
	p.binary = writeFakePing(t, 0)

	if !p.Ping(context.Background(), "10.0.0.1") {
		t.Fatal("expected host to be reachable")
	}
}

func TestPingUnreachableHost(t *testing.T) {
	p := NewPinger()
	p.binary = writeFakePing(t, 1)

	if p.Ping(context.Background(), "10.0.0.1") {
		t.Fatal("expected host to be unreachable")
	}
}

package daemon

import (
	"path/filepath"
	"testing"

	"github.com/kuuji/mrouted/internal/mroute"
)

func TestControlServerFlushAndStats(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "test.sock")

	var flushed int
	stats := mroute.Stats{VIFsOccupied: 2, MIFsOccupied: 1, ConfRoutes: 3, DynRoutes: 4}

	srv := NewControlServer(socketPath,
		func() { flushed++ },
		func() mroute.Stats { return stats },
		nil)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop()

	if err := SendFlush(socketPath); err != nil {
		t.Fatalf("SendFlush() error: %v", err)
	}
	if flushed != 1 {
		t.Fatalf("expected flush to be called once, got %d", flushed)
	}

	got, err := FetchStats(socketPath)
	if err != nil {
		t.Fatalf("FetchStats() error: %v", err)
	}
	if got != stats {
		t.Fatalf("FetchStats() = %+v, want %+v", got, stats)
	}
}

func TestSendFlushNoServer(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "absent.sock")
	if err := SendFlush(socketPath); err == nil {
		t.Fatal("expected an error connecting to a socket with no server")
	}
}

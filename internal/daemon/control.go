package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kuuji/mrouted/internal/mroute"
)

// ResolveSocketPath returns the control-socket path for the running
// daemon. Mirrors systemd's RuntimeDirectory= convention: prefer the
// system runtime directory, fall back to /tmp outside of a service.
func ResolveSocketPath() string {
	if runtime.GOOS == "darwin" {
		if info, err := os.Stat("/var/run/mrouted"); err == nil && info.IsDir() {
			return "/var/run/mrouted/control.sock"
		}
		return "/tmp/mrouted/control.sock"
	}

	if info, err := os.Stat("/run/mrouted"); err == nil && info.IsDir() {
		return "/run/mrouted/control.sock"
	}
	return "/tmp/mrouted/control.sock"
}

// FlushFunc triggers the running daemon's Router.DynFlush.
type FlushFunc func()

// StatsFunc returns the running daemon's current Router.Stats.
type StatsFunc func() mroute.Stats

// ControlServer is a small Unix-socket HTTP server exposing the
// running daemon to CLI subcommands that need to reach it directly
// ("mrouted flush" via POST /flush, "mrouted show" via GET /stats)
// rather than through config.toml.
type ControlServer struct {
	socketPath string
	flush      FlushFunc
	stats      StatsFunc
	log        *slog.Logger
	listener   net.Listener
	httpServer *http.Server
}

// NewControlServer creates a control server. flush and stats are
// called from HTTP handler goroutines, so both must route through a
// Dispatcher rather than touching the Router directly.
func NewControlServer(socketPath string, flush FlushFunc, stats StatsFunc, log *slog.Logger) *ControlServer {
	if log == nil {
		log = slog.Default()
	}
	return &ControlServer{
		socketPath: socketPath,
		flush:      flush,
		stats:      stats,
		log:        log.With("component", "control"),
	}
}

// Start begins listening on the Unix socket. It returns immediately;
// the server runs in the background.
func (s *ControlServer) Start() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating socket directory %s: %w", dir, err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	s.listener = ln

	if err := os.Chmod(s.socketPath, 0660); err != nil {
		s.log.Warn("setting socket permissions", "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/flush", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleFlush(w, r)
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleStats(w, r)
	})
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("control server error", "error", err)
		}
	}()

	s.log.Info("control server started", "socket", s.socketPath)
	return nil
}

// Stop gracefully shuts down the control server and removes the
// socket file.
func (s *ControlServer) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Warn("control server shutdown", "error", err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("removing socket file", "error", err)
	}
	return nil
}

func (s *ControlServer) handleFlush(w http.ResponseWriter, r *http.Request) {
	s.flush()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (s *ControlServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		s.log.Error("encoding stats response", "error", err)
	}
}

func controlClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func controlDial(socketPath string) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return net.Dial("unix", socketPath)
		},
	}
}

// SendFlush connects to a running daemon's control socket and
// triggers dyn_flush. Used by the "mrouted flush" CLI command.
func SendFlush(socketPath string) error {
	client := controlClient()
	client.Transport = controlDial(socketPath)

	resp, err := client.Post("http://mrouted/flush", "application/json", nil)
	if err != nil {
		return fmt.Errorf("connecting to control socket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// FetchStats connects to a running daemon's control socket and
// returns its current Stats. Used by "mrouted show".
func FetchStats(socketPath string) (mroute.Stats, error) {
	client := controlClient()
	client.Transport = controlDial(socketPath)

	resp, err := client.Get("http://mrouted/stats")
	if err != nil {
		return mroute.Stats{}, fmt.Errorf("connecting to control socket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mroute.Stats{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var stats mroute.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return mroute.Stats{}, fmt.Errorf("decoding stats response: %w", err)
	}
	return stats, nil
}

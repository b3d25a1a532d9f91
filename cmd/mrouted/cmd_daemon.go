package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kuuji/mrouted/internal/config"
	"github.com/kuuji/mrouted/internal/daemon"
	"github.com/kuuji/mrouted/internal/iface"
	"github.com/kuuji/mrouted/internal/metrics"
	"github.com/kuuji/mrouted/internal/mroute"
	"github.com/kuuji/mrouted/internal/reload"
	"github.com/kuuji/mrouted/internal/upcall"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the multicast routing control daemon in the foreground",
	RunE:  runDaemon,
}

// runDaemon owns the sole *mroute.Router for the process. Every call
// into it — from reload's watcher callback, the upcall listener, and
// the control socket's flush and stats handlers — is routed through
// disp so the non-reentrant Router is never touched by two goroutines
// at once. The one exception is the upcall listener's blocking
// NextUpcall read, which runs on the listener's own reader goroutine.
func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := resolvedConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ifaces, err := iface.Discover()
	if err != nil {
		return fmt.Errorf("discovering interfaces: %w", err)
	}
	applyInterfaceOverrides(ifaces, cfg.Interfaces)

	router := mroute.New(ifaces, slog.Default())

	disp := daemon.New(slog.Default())
	go disp.Run()
	defer disp.Close()

	var enableErr error
	disp.Do(func() { enableErr = router.Enable4() })
	if enableErr != nil {
		return fmt.Errorf("enabling IPv4 multicast routing: %w", enableErr)
	}
	defer disp.Do(func() { router.Disable4() })

	v6enabled := true
	disp.Do(func() {
		if err := router.Enable6(); err != nil {
			slog.Warn("IPv6 multicast routing unavailable, continuing IPv4-only", "error", err)
			v6enabled = false
		}
	})
	if v6enabled {
		defer disp.Do(func() { router.Disable6() })
	}

	var applied []config.RouteConfig
	var applyErr error
	disp.Do(func() {
		applyInterfaceState(router, cfg.Interfaces)
		applied, applyErr = reconcileRoutes(router, ifaces, nil, cfg.Routes)
	})
	if applyErr != nil {
		return fmt.Errorf("applying configured routes: %w", applyErr)
	}

	var stats mroute.Stats
	disp.Do(func() { stats = router.Stats() })
	metrics.Sync(stats)

	if cfg.Metrics.Listen != "" {
		startMetricsServer(ctx, cfg.Metrics.Listen)
	}

	ctrl := daemon.NewControlServer(daemon.ResolveSocketPath(),
		func() { disp.Do(func() { router.DynFlush() }) },
		func() mroute.Stats {
			var s mroute.Stats
			disp.Do(func() { s = router.Stats() })
			return s
		},
		slog.Default())
	if err := ctrl.Start(); err != nil {
		slog.Warn("control socket unavailable, 'mrouted flush' will not reach this daemon", "error", err)
	} else {
		defer ctrl.Stop()
	}

	var watcher *reload.Watcher
	if cfg.Reload.Watch {
		watcher, err = reload.New(path, func() {
			disp.Do(func() { applied = onConfigChanged(router, ifaces, path, applied) })
		}, slog.Default())
		if err != nil {
			slog.Warn("config reload watcher unavailable", "error", err)
		} else {
			watcher.Start()
			defer watcher.Close()
		}
	}

	listener := upcall.New(router, disp, slog.Default())
	slog.Info("mrouted daemon started", "config", path, "vifs", stats.VIFsOccupied, "mifs", stats.MIFsOccupied)

	err = listener.Run(ctx)
	if ctx.Err() != nil {
		slog.Info("shutting down")
		return nil
	}
	return err
}

func applyInterfaceOverrides(snap *iface.Snapshot, overrides []config.InterfaceConfig) {
	for _, o := range overrides {
		ifc, ok := snap.FindByName(o.Name)
		if !ok {
			slog.Warn("configured interface not found on host", "interface", o.Name)
			continue
		}
		if o.Threshold > 0 {
			ifc.Threshold = o.Threshold
		}
	}
}

// applyInterfaceState drives config-level interface enable/disable
// through the router's table manager. Adding an interface that already
// holds a slot is a no-op, so re-running this on every reload is safe.
// Must only be called from the dispatcher goroutine.
func applyInterfaceState(router *mroute.Router, overrides []config.InterfaceConfig) {
	for _, o := range overrides {
		if o.Disabled {
			router.DelInterface(o.Name)
			continue
		}
		threshold := o.Threshold
		if threshold == 0 {
			threshold = 1
		}
		router.AddInterface(o.Name, threshold)
	}
}

// onConfigChanged must only be called from the dispatcher goroutine
// (it is wired as the reload watcher's callback via disp.Do in
// runDaemon, never called directly from the watcher's own goroutine).
// It reconciles the daemon against the rewritten file rather than
// re-adding blindly: routes dropped since the last apply are withdrawn,
// unchanged ones are left alone, and interface enable/disable reaches
// the VIF/MIF tables. Returns the route entries now applied, to be fed
// back in as prev on the next change.
func onConfigChanged(router *mroute.Router, snap *iface.Snapshot, path string, prev []config.RouteConfig) []config.RouteConfig {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		slog.Error("reload: failed to load config", "error", err)
		return prev
	}
	applyInterfaceOverrides(snap, cfg.Interfaces)
	applyInterfaceState(router, cfg.Interfaces)
	applied, err := reconcileRoutes(router, snap, prev, cfg.Routes)
	if err != nil {
		slog.Error("reload: failed to apply routes", "error", err)
	}
	metrics.Sync(router.Stats())
	slog.Info("config reloaded", "path", path)
	return applied
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
}

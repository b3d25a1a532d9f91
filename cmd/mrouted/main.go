// Command mrouted is a user-space control daemon for the kernel's IP
// multicast forwarding engine: it owns the kernel routing socket,
// maintains the VIF/MIF tables, and expands configured wildcard routes
// into concrete kernel entries as traffic arrives.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuuji/mrouted/internal/config"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mrouted",
	Short: "User-space control plane for kernel IP multicast routing",
	Long: `mrouted owns the kernel's multicast routing socket, maintains the
VIF/MIF interface tables, and expands (*,G) wildcard routes into
concrete (S,G) kernel entries as the kernel reports new traffic.

It does not forward packets itself — that is the kernel's job once the
tables and routes mrouted installs are in place.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.toml (default /etc/mrouted/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(vifCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(showCmd)
}

// resolvedConfigPath returns the --config flag value, or the default
// path if unset.
func resolvedConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultConfigPath()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

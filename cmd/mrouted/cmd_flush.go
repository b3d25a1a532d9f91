package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuuji/mrouted/internal/daemon"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Withdraw every dynamically materialised route from the running daemon",
	Long: `Connects to a running daemon's control socket and triggers
dyn_flush, withdrawing every (S,G) route the wildcard expander
materialised without disturbing the configured wildcard templates
themselves.

Requires a daemon already running; there is nothing to flush
otherwise.`,
	RunE: runFlush,
}

func runFlush(cmd *cobra.Command, args []string) error {
	if err := daemon.SendFlush(daemon.ResolveSocketPath()); err != nil {
		return fmt.Errorf("flushing dynamic routes: %w", err)
	}
	fmt.Println("Flushed dynamic routes.")
	return nil
}

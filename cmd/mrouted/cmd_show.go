package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kuuji/mrouted/internal/config"
	"github.com/kuuji/mrouted/internal/daemon"
	"github.com/kuuji/mrouted/internal/iface"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the interfaces and routes mrouted would configure",
	Long: `Print the host's interfaces, marking which are eligible for a
VIF/MIF, and the routes on disk in config.toml. The tables reflect what
the next daemon start (or config reload) would install, not necessarily
the live kernel state of an already-running daemon; when a daemon is
reachable on its control socket, a final line reports its live VIF/MIF
and route counts.`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	snap, err := iface.Discover()
	if err != nil {
		return fmt.Errorf("discovering interfaces: %w", err)
	}

	path := resolvedConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	applyInterfaceOverrides(snap, cfg.Interfaces)

	headerStyle := lipgloss.NewStyle().Bold(true)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var ifaceRows [][]string
	for _, ifc := range snap.All() {
		eligible := "no"
		if !ifc.Loopback() && ifc.Multicast() {
			eligible = "yes"
		}
		ifaceRows = append(ifaceRows, []string{ifc.Name, fmt.Sprintf("%d", ifc.Ifindex), eligible, fmt.Sprintf("%d", ifc.Threshold)})
	}

	ifaceTable := ltable.New().
		Headers("INTERFACE", "IFINDEX", "ELIGIBLE", "THRESHOLD").
		Rows(ifaceRows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().PaddingRight(1)
		})
	fmt.Println(ifaceTable)

	if len(cfg.Routes) == 0 {
		fmt.Println("\nNo routes configured.")
	} else {
		var routeRows [][]string
		for _, r := range cfg.Routes {
			kind := "concrete"
			sender := r.Sender
			if sender == "" || sender == "0.0.0.0" {
				kind = fmt.Sprintf("wildcard/%d", r.Len)
				sender = "*"
			}
			routeRows = append(routeRows, []string{sender, r.Group, kind, r.Inbound, fmt.Sprintf("%v", r.Outbound)})
		}

		routeTable := ltable.New().
			Headers("SENDER", "GROUP", "KIND", "INBOUND", "OUTBOUND").
			Rows(routeRows...).
			Border(lipgloss.RoundedBorder()).
			BorderStyle(borderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == ltable.HeaderRow {
					return headerStyle
				}
				return lipgloss.NewStyle().PaddingRight(1)
			})
		fmt.Println()
		fmt.Println(routeTable)
	}

	if stats, err := daemon.FetchStats(daemon.ResolveSocketPath()); err == nil {
		fmt.Printf("\nLive daemon: %d VIFs, %d MIFs, %d configured routes, %d dynamic routes.\n",
			stats.VIFsOccupied, stats.MIFsOccupied, stats.ConfRoutes, stats.DynRoutes)
	}

	return nil
}

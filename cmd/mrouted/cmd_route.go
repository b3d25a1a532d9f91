package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kuuji/mrouted/internal/config"
	"github.com/kuuji/mrouted/internal/iface"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Manage configured multicast routes",
}

var (
	routeSender   string
	routeGroup    string
	routeLen      int
	routeInbound  string
	routeOutbound []string
	routeInteract bool
)

var routeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a route (direct or wildcard) to the config",
	Long: `Add a multicast forwarding entry to config.toml. Leaving --sender
empty files the entry as a (*,G/len) wildcard template that is only
materialised once traffic for a matching group actually arrives.

If mrouted is running with reload.watch enabled, the new route takes
effect as soon as the file is saved.`,
	RunE: runRouteAdd,
}

var routeDelCmd = &cobra.Command{
	Use:   "del",
	Short: "Interactively remove a configured route",
	RunE:  runRouteDel,
}

func init() {
	routeAddCmd.Flags().StringVar(&routeSender, "sender", "", "source address for a concrete (S,G) route; omit for a wildcard")
	routeAddCmd.Flags().StringVar(&routeGroup, "group", "", "multicast group address")
	routeAddCmd.Flags().IntVar(&routeLen, "len", 32, "wildcard prefix length over --group, 1..32 (ignored for concrete routes)")
	routeAddCmd.Flags().StringVar(&routeInbound, "inbound", "", "interface packets must arrive on")
	routeAddCmd.Flags().StringSliceVar(&routeOutbound, "outbound", nil, "interfaces to forward to, each optionally \"name/ttl\"")
	routeAddCmd.Flags().BoolVarP(&routeInteract, "interactive", "i", false, "prompt for route fields instead of reading flags")

	routeCmd.AddCommand(routeAddCmd)
	routeCmd.AddCommand(routeDelCmd)
}

func runRouteAdd(cmd *cobra.Command, args []string) error {
	rc := config.RouteConfig{
		Sender:   routeSender,
		Group:    routeGroup,
		Len:      routeLen,
		Inbound:  routeInbound,
		Outbound: routeOutbound,
	}

	if routeInteract {
		var err error
		rc, err = promptRoute()
		if err != nil {
			return err
		}
	}

	if rc.Group == "" || rc.Inbound == "" {
		return fmt.Errorf("--group and --inbound are required (or pass --interactive)")
	}

	snap, err := iface.Discover()
	if err != nil {
		return fmt.Errorf("discovering interfaces: %w", err)
	}
	if _, err := buildRoute4(snap, rc); err != nil {
		if _, err6 := buildRoute6(snap, rc); err6 != nil {
			return fmt.Errorf("invalid route: %w", err)
		}
	}

	path := resolvedConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	cfg.Routes = append(cfg.Routes, rc)

	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Added route for %s via %s.\n", rc.Group, rc.Inbound)
	return nil
}

func promptRoute() (config.RouteConfig, error) {
	var rc config.RouteConfig
	var outbound string
	lenStr := "32"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Group address").Description("Multicast group, e.g. 239.1.0.0").Value(&rc.Group),
			huh.NewInput().Title("Sender address").Description("Leave blank for a (*,G) wildcard").Value(&rc.Sender),
			huh.NewInput().Title("Wildcard prefix length").Description("Only used when sender is blank").Value(&lenStr),
			huh.NewInput().Title("Inbound interface").Value(&rc.Inbound),
			huh.NewInput().Title("Outbound interfaces").Description("Comma-separated, e.g. eth1,eth2/32").Value(&outbound),
		),
	)
	if err := form.Run(); err != nil {
		return config.RouteConfig{}, fmt.Errorf("cancelled")
	}

	fmt.Sscanf(lenStr, "%d", &rc.Len)
	for _, field := range strings.Split(outbound, ",") {
		if field = strings.TrimSpace(field); field != "" {
			rc.Outbound = append(rc.Outbound, field)
		}
	}
	return rc, nil
}

func runRouteDel(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Routes) == 0 {
		fmt.Println("No routes configured.")
		return nil
	}

	options := make([]huh.Option[int], len(cfg.Routes))
	for i, r := range cfg.Routes {
		label := fmt.Sprintf("%s via %s", r.Group, r.Inbound)
		if r.Sender != "" && r.Sender != "0.0.0.0" {
			label = fmt.Sprintf("(%s,%s) via %s", r.Sender, r.Group, r.Inbound)
		} else {
			label = fmt.Sprintf("(*,%s/%d) via %s", r.Group, r.Len, r.Inbound)
		}
		options[i] = huh.NewOption(label, i)
	}

	var selected int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().Title("Select a route to remove").Options(options...).Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("cancelled")
	}

	removed := cfg.Routes[selected]
	cfg.Routes = append(cfg.Routes[:selected], cfg.Routes[selected+1:]...)
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Removed route for %s.\n", removed.Group)
	return nil
}

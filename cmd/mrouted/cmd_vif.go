package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuuji/mrouted/internal/config"
)

var vifThreshold uint8

var vifCmd = &cobra.Command{
	Use:   "vif",
	Short: "Manage per-interface VIF/MIF settings",
}

var vifAddCmd = &cobra.Command{
	Use:   "add <interface>",
	Short: "Enable (or set the threshold of) an interface's VIF/MIF",
	Args:  cobra.ExactArgs(1),
	RunE:  runVIFAdd,
}

var vifDelCmd = &cobra.Command{
	Use:   "del <interface>",
	Short: "Disable an interface's VIF/MIF",
	Args:  cobra.ExactArgs(1),
	RunE:  runVIFDel,
}

func init() {
	vifAddCmd.Flags().Uint8Var(&vifThreshold, "threshold", 1, "minimum TTL/hop-limit forwarded out this interface")
	vifCmd.AddCommand(vifAddCmd)
	vifCmd.AddCommand(vifDelCmd)
}

func runVIFAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	return updateInterfaceConfig(name, func(ic *config.InterfaceConfig) {
		ic.Disabled = false
		ic.Threshold = vifThreshold
	})
}

func runVIFDel(cmd *cobra.Command, args []string) error {
	name := args[0]
	return updateInterfaceConfig(name, func(ic *config.InterfaceConfig) {
		ic.Disabled = true
	})
}

// updateInterfaceConfig loads the config, finds or creates the
// InterfaceConfig entry for name, applies mutate, and saves.
func updateInterfaceConfig(name string, mutate func(*config.InterfaceConfig)) error {
	path := resolvedConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	for i := range cfg.Interfaces {
		if cfg.Interfaces[i].Name == name {
			mutate(&cfg.Interfaces[i])
			if err := config.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Printf("Updated interface %q.\n", name)
			return nil
		}
	}

	ic := config.InterfaceConfig{Name: name}
	mutate(&ic)
	cfg.Interfaces = append(cfg.Interfaces, ic)
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Added interface %q.\n", name)
	return nil
}

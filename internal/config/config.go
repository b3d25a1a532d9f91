// Package config loads and saves mrouted's TOML configuration: the
// interface table, static and wildcard routes, and the ambient
// metrics/reload settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultConfigDir is the system-wide config directory for mrouted.
const DefaultConfigDir = "/etc/mrouted"

// Config is the top-level configuration for mrouted, persisted as a TOML
// file at DefaultConfigPath().
type Config struct {
	Interfaces []InterfaceConfig `toml:"interface"`
	Routes     []RouteConfig     `toml:"route"`
	Metrics    MetricsConfig     `toml:"metrics"`
	Reload     ReloadConfig      `toml:"reload"`
}

// InterfaceConfig pins a VIF/MIF threshold for a named interface. Any
// multicast-capable interface not listed here still gets a VIF/MIF at the
// default threshold; entries here override that threshold or, with
// Disabled, remove the interface from the tables.
type InterfaceConfig struct {
	// Name is the OS interface name (e.g. "eth0").
	Name string `toml:"name"`

	// Threshold is the minimum TTL/hop-limit a packet needs to be
	// forwarded out this interface. 1 means "forward everything".
	Threshold uint8 `toml:"threshold,omitempty"`

	// Disabled excludes this interface from both the VIF and MIF tables
	// even if it is otherwise eligible.
	Disabled bool `toml:"disabled,omitempty"`
}

// RouteConfig declares one multicast forwarding entry. Family is inferred
// from whether Group parses as IPv4 or IPv6.
//
// A route with no Sender (or Sender == "0.0.0.0") is a (*,G/Len) wildcard
// template; IPv6 routes may not be wildcards.
type RouteConfig struct {
	// Sender is the source address for a concrete (S,G) route. Empty for
	// a wildcard template.
	Sender string `toml:"sender,omitempty"`

	// Group is the multicast group address.
	Group string `toml:"group"`

	// Len is the wildcard prefix length over Group, 1..32. Ignored for
	// IPv6 and for concrete IPv4 routes (Len defaults to 32 there).
	Len int `toml:"len,omitempty"`

	// Inbound is the interface packets must arrive on, named the same
	// way as an InterfaceConfig entry.
	Inbound string `toml:"inbound"`

	// Outbound lists the interfaces packets are forwarded to, each
	// optionally followed by "/ttl" (e.g. "eth1/32"); a bare name
	// defaults to TTL 1.
	Outbound []string `toml:"outbound"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Listen is the address the metrics HTTP server binds, e.g.
	// "127.0.0.1:9192". Empty disables the endpoint.
	Listen string `toml:"listen,omitempty"`
}

// ReloadConfig controls the config-file watcher.
type ReloadConfig struct {
	// Watch enables fsnotify-based reload on config file changes.
	Watch bool `toml:"watch,omitempty"`
}

// DefaultConfig returns a Config with no interfaces or routes configured
// and reload watching enabled, matching a freshly installed daemon that
// has not been given a topology yet.
func DefaultConfig() *Config {
	return &Config{
		Reload: ReloadConfig{Watch: true},
	}
}

// DefaultConfigPath returns the default path for the mrouted config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, "config.toml")
}

// LoadConfig reads and decodes the TOML config at path.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML to path, creating parent directories
// (mode 0755) if needed.
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// ParseTOML decodes a TOML config from a string. Nothing in this
// repository calls it; `mrouted route add --interactive` builds its
// entry from form fields instead.
func ParseTOML(s string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(s, cfg); err != nil {
		return nil, fmt.Errorf("decoding TOML config: %w", err)
	}
	return cfg, nil
}

// MarshalTOML encodes cfg to a TOML string.
func MarshalTOML(cfg *Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding TOML config: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// SplitOutbound parses an "ifname" or "ifname/ttl" outbound spec.
func SplitOutbound(spec string) (name string, ttl uint8) {
	name, ttlStr, ok := strings.Cut(spec, "/")
	if !ok {
		return spec, 1
	}
	var v int
	if _, err := fmt.Sscanf(ttlStr, "%d", &v); err != nil || v <= 0 || v > 255 {
		return name, 1
	}
	return name, uint8(v)
}

package config

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := &Config{
		Interfaces: []InterfaceConfig{
			{Name: "eth0", Threshold: 1},
			{Name: "eth1", Threshold: 64, Disabled: true},
		},
		Routes: []RouteConfig{
			{Group: "239.1.0.0", Len: 16, Inbound: "eth0", Outbound: []string{"eth1/32"}},
			{Sender: "10.0.0.5", Group: "239.2.2.2", Inbound: "eth0", Outbound: []string{"eth1"}},
		},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9192"},
		Reload:  ReloadConfig{Watch: true},
	}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(got.Interfaces) != 2 || got.Interfaces[1].Name != "eth1" || !got.Interfaces[1].Disabled {
		t.Fatalf("interfaces round-tripped wrong: %+v", got.Interfaces)
	}
	if len(got.Routes) != 2 || got.Routes[0].Len != 16 {
		t.Fatalf("routes round-tripped wrong: %+v", got.Routes)
	}
	if got.Metrics.Listen != "127.0.0.1:9192" {
		t.Fatalf("metrics listen address round-tripped wrong: %q", got.Metrics.Listen)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestSplitOutbound(t *testing.T) {
	cases := []struct {
		spec     string
		wantName string
		wantTTL  uint8
	}{
		{"eth1", "eth1", 1},
		{"eth1/32", "eth1", 32},
		{"eth1/0", "eth1", 1},
		{"eth1/bogus", "eth1", 1},
	}
	for _, c := range cases {
		name, ttl := SplitOutbound(c.spec)
		if name != c.wantName || ttl != c.wantTTL {
			t.Errorf("SplitOutbound(%q) = (%q, %d), want (%q, %d)", c.spec, name, ttl, c.wantName, c.wantTTL)
		}
	}
}

package config

import (
	"testing"

	"github.com/spf13/viper"
)

func newLoadedViper(t *testing.T, kv map[string]string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetDefault("interface", "")
	v.SetDefault("address", "")
	v.SetDefault("switch_addr", "")
	for k, val := range kv {
		v.Set(k, val)
	}
	return v
}

func TestLoadValid(t *testing.T) {
	v := newLoadedViper(t, map[string]string{
		"interface":   "eth0",
		"address":     "10.0.0.9:1331",
		"switch_addr": "10.0.0.1:9000",
	})

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interface != "eth0" {
		t.Errorf("Interface = %q, want eth0", cfg.Interface)
	}
	if cfg.Address.String() != "10.0.0.9:1331" {
		t.Errorf("Address = %s, want 10.0.0.9:1331", cfg.Address)
	}
	if cfg.SwitchAddr.String() != "10.0.0.1:9000" {
		t.Errorf("SwitchAddr = %s, want 10.0.0.1:9000", cfg.SwitchAddr)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	v := newLoadedViper(t, map[string]string{
		"interface": "eth0",
	})

	if _, err := Load(v); err == nil {
		t.Fatal("expected validation error for missing address/switch_addr")
	}
}

func TestLoadInvalidAddress(t *testing.T) {
	v := newLoadedViper(t, map[string]string{
		"interface":   "eth0",
		"address":     "not-an-address",
		"switch_addr": "10.0.0.1:9000",
	})

	if _, err := Load(v); err == nil {
		t.Fatal("expected parse error for invalid --address")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TCAPD_SWITCH_ADDR", "192.168.1.1:7000")

	v := newLoadedViper(t, map[string]string{
		"interface": "eth0",
		"address":   "10.0.0.9:1331",
	})

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SwitchAddr.String() != "192.168.1.1:7000" {
		t.Errorf("SwitchAddr = %s, want env override 192.168.1.1:7000", cfg.SwitchAddr)
	}
}

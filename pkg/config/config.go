// Package config loads and validates tcapd's runtime configuration:
// the interface to bind, the local and switch addresses, and the
// optional telemetry toggles. Precedence follows the teacher's own
// convention: CLI flag, then environment variable, then default.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/capnode/tcapd/internal/address"
)

// Config carries every parameter needed to construct and run a Service.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TCAPD_*)
//  3. Default values (lowest priority)
type Config struct {
	// Interface is the network interface to bind the UDP socket to via
	// SO_BINDTODEVICE.
	Interface string `mapstructure:"interface" validate:"required"`

	// Address is this node's local ip:port.
	Address string `mapstructure:"address" validate:"required"`

	// SwitchAddr is the switch control plane's ip:port.
	SwitchAddr string `mapstructure:"switch_addr" validate:"required"`

	// NetStats enables the Prometheus send/receive counters.
	NetStats bool `mapstructure:"net_stats"`

	// MetricsAddr, when set and NetStats is enabled, serves /metrics on
	// this address.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// DirectControlPlaneCopies mirrors InsertCap, CapRevoke, and
	// CapInvalid packets to the switch address.
	DirectControlPlaneCopies bool `mapstructure:"direct_control_plane_copies"`
}

// Parsed is Config with its address strings resolved to address.Address
// values, ready to hand to tcap.Service.
type Parsed struct {
	Interface                string
	Address                  address.Address
	SwitchAddr               address.Address
	NetStats                 bool
	MetricsAddr              string
	DirectControlPlaneCopies bool
}

var validate = validator.New()

// Load builds a Config from flag-bound viper state, validates it, and
// resolves its address strings.
//
// v must already have the CLI flags bound (viper.BindPFlag) by the
// caller; Load only wires environment variable support and decoding.
func Load(v *viper.Viper) (*Parsed, error) {
	setupViper(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return resolve(&cfg)
}

// resolve parses the string addresses in cfg into address.Address values.
func resolve(cfg *Config) (*Parsed, error) {
	localAddr, err := address.Parse(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid --address: %w", err)
	}

	switchAddr, err := address.Parse(cfg.SwitchAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid --switch-addr: %w", err)
	}

	return &Parsed{
		Interface:                cfg.Interface,
		Address:                  localAddr,
		SwitchAddr:               switchAddr,
		NetStats:                 cfg.NetStats,
		MetricsAddr:              cfg.MetricsAddr,
		DirectControlPlaneCopies: cfg.DirectControlPlaneCopies,
	}, nil
}

// setupViper wires environment variable support. Environment variables
// use the TCAPD_ prefix and underscores, e.g. TCAPD_SWITCH_ADDR.
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix("TCAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

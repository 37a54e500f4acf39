package config

import (
	"fmt"
	"net"
	"strings"
)

var (
	MaxFillWindowSeconds = uint64(3600)
	MaxStalenessSeconds  = uint64(3600)
)

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("listen address %q: %w", c.ListenAddress, err)
	}
	if c.Engine.FillWindowSeconds == 0 || c.Engine.FillWindowSeconds > MaxFillWindowSeconds {
		return fmt.Errorf("engine: fill window must be within [1,%d] seconds", MaxFillWindowSeconds)
	}
	if c.Engine.StalenessSeconds == 0 || c.Engine.StalenessSeconds > MaxStalenessSeconds {
		return fmt.Errorf("engine: staleness threshold must be within [1,%d] seconds", MaxStalenessSeconds)
	}
	if c.RPC.RateLimitPerSecond < 0 {
		return fmt.Errorf("rpc: rate limit must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst <= 0 {
		return fmt.Errorf("rpc: rate limit burst must be positive")
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return fmt.Errorf("rpc: max body bytes must be positive")
	}
	if !c.Journal.Disabled {
		switch strings.ToLower(c.Journal.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("journal: unsupported driver %q", c.Journal.Driver)
		}
		if strings.TrimSpace(c.Journal.DSN) == "" {
			return fmt.Errorf("journal: dsn required")
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log: max size must be positive when a file is set")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0,1]")
	}
	return nil
}

package config

import "time"

// Engine tunes the settlement engine timing windows.
type Engine struct {
	FillWindowSeconds uint64 `toml:"FillWindowSeconds"`
	StalenessSeconds  uint64 `toml:"StalenessSeconds"`
}

func (e Engine) FillWindow() time.Duration {
	return time.Duration(e.FillWindowSeconds) * time.Second
}

func (e Engine) StalenessThreshold() time.Duration {
	return time.Duration(e.StalenessSeconds) * time.Second
}

// RPC controls the HTTP API surface.
type RPC struct {
	// JWTSecretEnv names the environment variable holding the HMAC secret used
	// to verify bearer tokens.
	JWTSecretEnv        string  `toml:"JWTSecretEnv"`
	JWTIssuer           string  `toml:"JWTIssuer"`
	RateLimitPerSecond  float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst      int     `toml:"RateLimitBurst"`
	ReadTimeoutSeconds  uint32  `toml:"ReadTimeoutSeconds"`
	WriteTimeoutSeconds uint32  `toml:"WriteTimeoutSeconds"`
	MaxBodyBytes        int64   `toml:"MaxBodyBytes"`
}

// Journal selects the relational store backing the event journal.
type Journal struct {
	Disabled bool   `toml:"Disabled"`
	Driver   string `toml:"Driver"`
	DSN      string `toml:"DSN"`
}

// Log configures structured logging output.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}

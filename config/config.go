package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultEnvironment  = "local"
	defaultListen       = ":8080"
	defaultDataDir      = "./solation-data"
	defaultJWTSecretEnv = "SOLATION_JWT_SECRET"
	defaultJWTIssuer    = "solation"
)

type Config struct {
	Environment   string    `toml:"Environment"`
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	GenesisFile   string    `toml:"GenesisFile"`
	Engine        Engine    `toml:"Engine"`
	RPC           RPC       `toml:"RPC"`
	Journal       Journal   `toml:"Journal"`
	Log           Log       `toml:"Log"`
	Telemetry     Telemetry `toml:"Telemetry"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		Environment:   defaultEnvironment,
		ListenAddress: defaultListen,
		DataDir:       defaultDataDir,
		Engine: Engine{
			FillWindowSeconds: 30,
			StalenessSeconds:  60,
		},
		RPC: RPC{
			JWTSecretEnv:        defaultJWTSecretEnv,
			JWTIssuer:           defaultJWTIssuer,
			RateLimitPerSecond:  20,
			RateLimitBurst:      40,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 15,
			MaxBodyBytes:        1 << 20,
		},
		Journal: Journal{Driver: "sqlite"},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaultEnvironment
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.RPC.JWTSecretEnv) == "" {
		c.RPC.JWTSecretEnv = defaultJWTSecretEnv
	}
	if strings.TrimSpace(c.Journal.Driver) == "" {
		c.Journal.Driver = "sqlite"
	}
	if c.Journal.DSN == "" && c.Journal.Driver == "sqlite" {
		c.Journal.DSN = filepath.Join(c.DataDir, "journal.db")
	}
}

// StateDir is the LevelDB directory under DataDir.
func (c *Config) StateDir() string { return filepath.Join(c.DataDir, "state") }

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

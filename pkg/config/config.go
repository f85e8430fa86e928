package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credentials holds API access for one exchange.
type Credentials struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
}

// Strategy is one entry under the top-level strategies map.
type Strategy struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Symbols    []string `yaml:"symbols" json:"symbols"`
	Parameters Params   `yaml:"parameters" json:"parameters"`
}

// Config is the top-level configuration consumed by the engine.
// It is loaded once at startup and never mutated afterwards; changes
// require a restart.
type Config struct {
	Exchanges        []string               `yaml:"exchanges" json:"exchanges"`
	DefaultExchange  string                 `yaml:"default_exchange" json:"default_exchange"`
	APIKeys          map[string]Credentials `yaml:"api_keys" json:"api_keys"`
	TestMode         bool                   `yaml:"test_mode" json:"test_mode"`
	DryRun           bool                   `yaml:"dry_run" json:"dry_run"`
	LogDir           string                 `yaml:"log_dir" json:"log_dir"`
	IcebergThreshold float64                `yaml:"iceberg_threshold" json:"iceberg_threshold"`
	MinOrderAmount   float64                `yaml:"min_order_amount" json:"min_order_amount"`
	Strategies       map[string]Strategy    `yaml:"strategies" json:"strategies"`
}

// Load reads a YAML or JSON configuration file. When path is empty it probes
// config.yaml, config.yml and config.json in the working directory.
// Credentials from the environment (optionally via .env) take precedence over
// keys in the file: <EXCHANGE>_API_KEY / <EXCHANGE>_SECRET_KEY.
func Load(path string) (*Config, error) {
	// Ignore error so the process still starts when .env is missing.
	_ = godotenv.Load()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "config.yml", "config.json"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no config file found (tried config.yaml, config.yml, config.json)")
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		DryRun:           true,
		LogDir:           "logs",
		IcebergThreshold: 1.0,
		MinOrderAmount:   10.0,
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (use YAML or JSON)", ext)
	}

	cfg.applyEnvCredentials()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvCredentials() {
	if c.APIKeys == nil {
		c.APIKeys = make(map[string]Credentials)
	}
	for _, ex := range c.Exchanges {
		prefix := strings.ToUpper(strings.ReplaceAll(ex, "-", "_"))
		creds := c.APIKeys[ex]
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			creds.APIKey = v
		}
		if v := os.Getenv(prefix + "_SECRET_KEY"); v != "" {
			creds.SecretKey = v
		}
		c.APIKeys[ex] = creds
	}
}

// Validate checks the global portion of the configuration. Per-strategy
// parameters are validated separately so one bad strategy does not take
// down the rest.
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("config: at least one exchange is required")
	}
	if c.DefaultExchange == "" {
		return fmt.Errorf("config: default_exchange is required")
	}
	found := false
	for _, ex := range c.Exchanges {
		if ex == c.DefaultExchange {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config: default_exchange %q is not listed in exchanges", c.DefaultExchange)
	}
	if c.IcebergThreshold <= 0 {
		return fmt.Errorf("config: iceberg_threshold must be positive, got %v", c.IcebergThreshold)
	}
	if c.MinOrderAmount <= 0 {
		return fmt.Errorf("config: min_order_amount must be positive, got %v", c.MinOrderAmount)
	}
	return nil
}

// EnabledStrategies returns the ids of strategies marked enabled, in stable order.
func (c *Config) EnabledStrategies() []string {
	ids := make([]string, 0, len(c.Strategies))
	for id, s := range c.Strategies {
		if s.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

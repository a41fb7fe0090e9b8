package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive or deployment-specific
// values can be overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Engine struct {
		// Mode selects the matching path: "memory" for the in-memory book,
		// "store" for database-scan matching only.
		Mode string `yaml:"mode"`
		// Fallback enables degrading to store matching when the in-memory
		// engine is unavailable.
		Fallback bool `yaml:"fallback"`
	} `yaml:"engine"`

	Market struct {
		SpreadTicks          int64  `yaml:"spread_ticks"`
		SeedQuantity         int64  `yaml:"seed_quantity"`
		PlatformUserID       string `yaml:"platform_user_id"`
		StartingBalanceCents int64  `yaml:"starting_balance_cents"`
	} `yaml:"market"`

	Feed struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	switch c.Engine.Mode {
	case "memory", "store":
	default:
		return fmt.Errorf("invalid engine mode: %s", c.Engine.Mode)
	}

	if c.Market.SpreadTicks < 0 || c.Market.SpreadTicks > 49 {
		return fmt.Errorf("spread ticks must be in [0, 49], got %d", c.Market.SpreadTicks)
	}
	if c.Market.SeedQuantity < 0 {
		return fmt.Errorf("seed quantity must not be negative")
	}
	if c.Market.SeedQuantity > 0 && c.Market.PlatformUserID == "" {
		return fmt.Errorf("platform user id is required when seeding is enabled")
	}
	if c.Market.StartingBalanceCents < 0 {
		return fmt.Errorf("starting balance must not be negative")
	}

	if c.Feed.Enabled && c.Feed.Addr == "" {
		return fmt.Errorf("feed listen address is required when the feed is enabled")
	}

	return nil
}

// overrideWithEnv replaces settings for which an environment variable is set.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("PREDMARKET_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if mode := os.Getenv("PREDMARKET_ENGINE_MODE"); mode != "" {
		cfg.Engine.Mode = mode
	}
	if addr := os.Getenv("PREDMARKET_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
	if level := os.Getenv("PREDMARKET_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

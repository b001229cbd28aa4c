package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"trade_dash/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultReconnectDelayMS = 5000
	DefaultPageLimit        = 100
)

// Config holds every setting of the dashboard.
// After LoadConfig reads the file, environment variables override it.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Venue struct {
		RestURL          string `yaml:"rest_url"`
		WSURL            string `yaml:"ws_url"`
		ReconnectDelayMS int    `yaml:"reconnect_delay_ms"`
		PingIntervalSec  int    `yaml:"ping_interval_sec"`
		PageLimit        int    `yaml:"page_limit"`
	} `yaml:"venue"`

	Trader struct {
		ID string `yaml:"id"`
	} `yaml:"trader"`

	UI struct {
		UpdateIntervalMS int `yaml:"update_interval_ms"`
	} `yaml:"ui"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Debug struct {
		Addr string `yaml:"addr"`
	} `yaml:"debug"`
}

// LoadConfig reads and parses the config file.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Venue.ReconnectDelayMS == 0 {
		c.Venue.ReconnectDelayMS = DefaultReconnectDelayMS
	}
	if c.Venue.PageLimit == 0 {
		c.Venue.PageLimit = DefaultPageLimit
	}
	if c.UI.UpdateIntervalMS == 0 {
		c.UI.UpdateIntervalMS = 1000
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Venue.WSURL == "" || (!hasPrefix(c.Venue.WSURL, "ws://") && !hasPrefix(c.Venue.WSURL, "wss://")) {
		return &domain.ConfigError{Field: "venue.ws_url", Err: fmt.Errorf("invalid WS URL: %q", c.Venue.WSURL)}
	}
	if c.Venue.RestURL == "" || (!hasPrefix(c.Venue.RestURL, "http://") && !hasPrefix(c.Venue.RestURL, "https://")) {
		return &domain.ConfigError{Field: "venue.rest_url", Err: fmt.Errorf("invalid REST URL: %q", c.Venue.RestURL)}
	}
	if c.Venue.ReconnectDelayMS < 0 {
		return &domain.ConfigError{Field: "venue.reconnect_delay_ms", Err: errors.New("must not be negative")}
	}
	if c.Venue.PingIntervalSec < 0 {
		return &domain.ConfigError{Field: "venue.ping_interval_sec", Err: errors.New("must not be negative")}
	}
	if c.Venue.PageLimit < 0 {
		return &domain.ConfigError{Field: "venue.page_limit", Err: errors.New("must not be negative")}
	}

	// UI
	if c.UI.UpdateIntervalMS <= 0 {
		return &domain.ConfigError{Field: "ui.update_interval_ms", Err: errors.New("update interval must be positive")}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

// overrideWithEnv overrides values from the environment when present.
func overrideWithEnv(cfg *Config) {
	if id := os.Getenv("DASH_TRADER_ID"); id != "" {
		cfg.Trader.ID = id
	}
	if u := os.Getenv("DASH_REST_URL"); u != "" {
		cfg.Venue.RestURL = u
	}
	if u := os.Getenv("DASH_WS_URL"); u != "" {
		cfg.Venue.WSURL = u
	}
	if lvl := os.Getenv("DASH_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}

// Package config loads the bodygraph service configuration: built-in
// defaults, then an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/bodygraph/internal/render"
	"github.com/talgya/bodygraph/internal/svg"
)

// Config represents the complete service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int             `yaml:"port"`
	CORSOrigins []string        `yaml:"cors_origins"`
	AdminKey    string          `yaml:"admin_key"` // Bearer token for admin POSTs. Empty = disabled.
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds render requests per client IP.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// CacheConfig configures the SQLite render cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RenderConfig configures output sizes and the palette.
type RenderConfig struct {
	ScreenWidth int          `yaml:"screen_width"`
	ExportWidth int          `yaml:"export_width"`
	Theme       render.Theme `yaml:"theme"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with working defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			RateLimit: RateLimitConfig{
				Requests: 120,
				Window:   time.Minute,
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "data/bodygraph.db",
		},
		Render: RenderConfig{
			ScreenWidth: svg.ScreenWidth,
			ExportWidth: svg.ExportWidth,
			Theme:       render.DefaultTheme(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RateLimit.Requests <= 0 {
		return fmt.Errorf("server.rate_limit.requests must be positive")
	}
	if c.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("server.rate_limit.window must be positive")
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when the cache is enabled")
	}
	if c.Render.ScreenWidth <= 0 || c.Render.ExportWidth <= 0 {
		return fmt.Errorf("render widths must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if err := c.Render.Theme.Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// LoadFromFile reads a YAML file over the defaults. Keys missing from the
// file keep their default value.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then path (if not
// empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("BODYGRAPH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BODYGRAPH_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("BODYGRAPH_DB"); v != "" {
		c.Cache.Path = v
	}
	if v := getenv("BODYGRAPH_CACHE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BODYGRAPH_CACHE: %w", err)
		}
		c.Cache.Enabled = enabled
	}
	if v := getenv("BODYGRAPH_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := getenv("BODYGRAPH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, origin)
			}
		}
	}
	return nil
}

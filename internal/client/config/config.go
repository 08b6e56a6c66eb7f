package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the bezrook CLI.
//
// Fields:
//   - ServerBaseURL: scheme://host[:port] of the REST backend.
//   - DatabasePath: SQLite file holding the session token.
//   - BannerTTL: how long an error banner stays on screen.
//   - RequestTimeout: upper bound per HTTP request; zero means none.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ServerBaseURL  string
	DatabasePath   string
	BannerTTL      time.Duration
	RequestTimeout time.Duration
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000"
	c.DatabasePath = "bezrook.db"
	c.BannerTTL = 5 * time.Second
	c.RequestTimeout = 0
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	return load(os.Args[1:])
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}

package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/bezrook/internal/flagx"
	"github.com/dmitrijs2005/bezrook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// Durations go through timex.Duration, so JSON may carry "5s" or an
// integer number of nanoseconds.
type JsonConfig struct {
	ServerBaseURL  string          `json:"server_base_url"`
	DatabasePath   string          `json:"database_path"`
	BannerTTL      *timex.Duration `json:"banner_ttl"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	LogLevel       string          `json:"log_level"`
}

// parseJson overlays Config with the fields present in the JSON file named
// by -c or -config. Without either flag it does nothing. Read and decode
// errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.BannerTTL != nil {
		cfg.BannerTTL = jc.BannerTTL.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}

package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/bezrook/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend (default from Config)
//	-d string   path of the local database file
//	-b int      error banner display time in seconds
//	-t int      request timeout in seconds, 0 disables it
//	-l string   log level
//
// Note: args are filtered with flagx.FilterArgs first, so flags owned by
// other loaders (e.g. -c) do not interfere.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-b", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "backend base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	bannerTTL := fs.Int("b", int(cfg.BannerTTL.Seconds()), "error banner display time (in seconds)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds, 0 = none)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// durations change only for flags present on the command line
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b":
			cfg.BannerTTL = time.Duration(*bannerTTL) * time.Second
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
}

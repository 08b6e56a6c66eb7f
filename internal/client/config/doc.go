// Package config loads runtime configuration for the bezrook CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   backend base URL, e.g. http://127.0.0.1:8000
//	-d string   local database file
//	-b int      error banner display time (seconds)
//	-t int      request timeout (seconds, 0 = none)
//	-l string   log level
//
// # JSON schema
//
// Durations accept strings like "5s" or integer nanoseconds. Absent keys
// keep the default:
//
//	{
//	  "server_base_url": "https://auth.example.com",
//	  "database_path": "/var/lib/bezrook/client.db",
//	  "banner_ttl": "5s",
//	  "request_timeout": "30s",
//	  "log_level": "debug"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config

// Package config loads runtime configuration for the authpipe demo client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   API base URL
//	-t int      per-request timeout (seconds)
//	-s string   SQLite file for the session token
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "10s"
// or integer nanoseconds:
//
//	{
//	  "base_url": "http://127.0.0.1:8080/api/",
//	  "refresh_path": "/token/refresh/",
//	  "public_paths": ["/login/", "/services/"],
//	  "request_timeout": "10s",
//	  "refresh_timeout": "30s",
//	  "session_db": "session.db",
//	  "session_id": "",
//	  "log_level": "info"
//	}
//
// Keys that are absent or empty leave the earlier value in place.
package config

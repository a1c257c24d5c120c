package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authpipe/internal/flagx"
	"github.com/dmitrijs2005/authpipe/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	BaseURL        string         `json:"base_url"`
	RefreshPath    string         `json:"refresh_path"`
	LoginPath      string         `json:"login_path"`
	LogoutPath     string         `json:"logout_path"`
	PublicPaths    []string       `json:"public_paths"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	RefreshTimeout timex.Duration `json:"refresh_timeout"`
	SessionDB      string         `json:"session_db"`
	SessionID      string         `json:"session_id"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c or -config. Without
// either flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.BaseURL, jc.BaseURL)
	setString(&cfg.RefreshPath, jc.RefreshPath)
	setString(&cfg.LoginPath, jc.LoginPath)
	setString(&cfg.LogoutPath, jc.LogoutPath)
	setString(&cfg.SessionDB, jc.SessionDB)
	setString(&cfg.SessionID, jc.SessionID)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.PublicPaths != nil {
		cfg.PublicPaths = jc.PublicPaths
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RefreshTimeout.Duration > 0 {
		cfg.RefreshTimeout = jc.RefreshTimeout.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authpipe/internal/flagx"
	"github.com/dmitrijs2005/authpipe/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Durations accept
// strings such as "30s" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string        `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	DemoUser                     string         `json:"demo_user"`
	DemoPassword                 string         `json:"demo_password"`
	LoginRateLimit               *float64       `json:"login_rate_limit"`
	LoginRateBurst               int            `json:"login_rate_burst"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays config with the file named by -c or -config. Keys that
// are absent keep their earlier values; endpoint_addr_grpc may be set to ""
// to switch gRPC off and login_rate_limit to 0 to switch limiting off.
func parseJson(config *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	if c.EndpointAddrGRPC != nil {
		config.EndpointAddrGRPC = *c.EndpointAddrGRPC
	}
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.DemoUser, c.DemoUser)
	setString(&config.DemoPassword, c.DemoPassword)
	setString(&config.LogLevel, c.LogLevel)
	if c.LoginRateLimit != nil {
		config.LoginRateLimit = *c.LoginRateLimit
	}
	if c.LoginRateBurst > 0 {
		config.LoginRateBurst = c.LoginRateBurst
	}
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

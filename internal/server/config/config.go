// Package config handles configuration for the demo server, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the demo server.
//
// Fields:
//   - EndpointAddrHTTP / EndpointAddrGRPC: bind addresses. An empty gRPC
//     address disables the gRPC listener.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Used for refresh tokens when set.
//   - RedisAddr: Redis host:port. Takes precedence over DatabaseDSN.
//     With neither set, refresh tokens live in memory.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use the default in prod.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - DemoUser / DemoPassword: account created at startup when both are set.
//   - LoginRateLimit / LoginRateBurst: per-client token bucket for the
//     login and register routes. A zero rate disables limiting.
type Config struct {
	EndpointAddrHTTP             string
	EndpointAddrGRPC             string
	DatabaseDSN                  string
	RedisAddr                    string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	DemoUser                     string
	DemoPassword                 string
	LoginRateLimit               float64
	LoginRateBurst               int
	LogLevel                     string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.RedisAddr = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 30 * time.Second
	c.RefreshTokenValidityDuration = 24 * time.Hour
	c.DemoUser = "demo"
	c.DemoPassword = "demo"
	c.LoginRateLimit = 5
	c.LoginRateBurst = 10
	c.LogLevel = "info"
}

// LoadConfig builds a Config from args (os.Args without the program name)
// by applying defaults, then an optional JSON file, then flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

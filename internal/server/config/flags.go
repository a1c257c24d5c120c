package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address, "" disables gRPC
//	-d string   PostgreSQL DSN
//	-r string   Redis address
//	-k string   JWT HMAC secret key
//	-at int     access token validity, seconds
//	-rt int     refresh token validity, seconds
//	-l string   log level
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-r", "-k", "-at", "-rt", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run the gRPC API")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "secret key")

	accessValidity := fs.Int("at", int(config.AccessTokenValidityDuration.Seconds()), "access token validity (in seconds)")
	refreshValidity := fs.Int("rt", int(config.RefreshTokenValidityDuration.Seconds()), "refresh token validity (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessValidity) * time.Second
	config.RefreshTokenValidityDuration = time.Duration(*refreshValidity) * time.Second
	return nil
}

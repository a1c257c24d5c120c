package config

import (
	"time"

	"github.com/dmitrijs2005/authpipe/internal/client/endpoints"
	"github.com/dmitrijs2005/authpipe/internal/common"
)

// Config holds runtime settings for the authpipe demo client.
//
// BaseURL is the API root every request path is appended to. RefreshPath,
// LoginPath and LogoutPath are relative to it. PublicPaths is the list of
// path fragments that never carry a bearer token. SessionDB is the SQLite
// file the access token is persisted to; an empty value keeps the token in
// memory only. SessionID resumes an earlier session.
type Config struct {
	BaseURL        string
	RefreshPath    string
	LoginPath      string
	LogoutPath     string
	PublicPaths    []string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	SessionDB      string
	SessionID      string
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080/api/"
	c.RefreshPath = common.DefaultRefreshPath
	c.LoginPath = common.DefaultLoginPath
	c.LogoutPath = common.DefaultLogoutPath
	c.PublicPaths = append([]string(nil), endpoints.DefaultPublicPaths...)
	c.RequestTimeout = 10 * time.Second
	c.RefreshTimeout = 30 * time.Second
	c.SessionDB = ""
	c.SessionID = ""
	c.LogLevel = "info"
}

// LoadConfig constructs a Config from args (os.Args without the program
// name): defaults first, then the JSON file named by -c/-config, then flags.
// Later sources take precedence over earlier ones.
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

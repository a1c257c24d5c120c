package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":              "www.example:9000",
		"database_dsn":                    "postgres://db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"demo_user":                       "alice",
		"demo_password":                   "pw",
	})

	t.Run("loads from flags", func(t *testing.T) {
		config := &Config{EndpointAddrGRPC: ":1"}
		require.NoError(t, parseJson(config, []string{"-c", pathFlag}))

		assert.Equal(t, "www.example:9000", config.EndpointAddrHTTP)
		assert.Equal(t, ":1", config.EndpointAddrGRPC, "absent key keeps value")
		assert.Equal(t, "postgres://db", config.DatabaseDSN)
		assert.Equal(t, "my_secret_key", config.SecretKey)
		assert.Equal(t, time.Minute, config.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, config.RefreshTokenValidityDuration)
		assert.Equal(t, "alice", config.DemoUser)
		assert.Equal(t, "pw", config.DemoPassword)
	})

	t.Run("no flags → no changes", func(t *testing.T) {
		config := &Config{SecretKey: "keep"}
		require.NoError(t, parseJson(config, nil))
		assert.Equal(t, "keep", config.SecretKey)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		require.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})
}

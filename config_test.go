package basicauth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "basicauth.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
metrics_listen = ":9090"
token_secret = "abc"
token_ttl = "15m"

[[users]]
name = "alice"
password = "s3cret"

[[users]]
name = "bob"
password = "hunter2"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, ":9090", cfg.MetricsListen)

	ttl, err := cfg.TTL()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, ttl)

	assert.Equal(t, StaticUsers{"alice": "s3cret", "bob": "hunter2"}, cfg.StaticUsers())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no users", `listen = ":1"`},
		{"duplicate user", "[[users]]\nname = \"a\"\n[[users]]\nname = \"a\"\n"},
		{"bad ttl", "token_ttl = \"soon\"\n[[users]]\nname = \"a\"\n"},
		{"negative ttl", "token_ttl = \"-1m\"\n[[users]]\nname = \"a\"\n"},
		{"cert without key", "cert_file = \"a.crt\"\n[[users]]\nname = \"a\"\n"},
		{"not toml", "[[users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7860, cfg.Port)
	assert.Equal(t, DefaultClientID, cfg.ClientID)
	assert.Equal(t, DefaultGQLURL, cfg.GQLURL)
	assert.Equal(t, DefaultAlternateCDNURL, cfg.AlternateCDNURL)
	assert.True(t, cfg.AlternateCDNEnabled)
	assert.Equal(t, DefaultUsherURL, cfg.UsherURL)
	assert.Equal(t, DefaultPlayerOrigin, cfg.PlayerOrigin)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9000")
	t.Setenv("TWITCH_CLIENT_ID", "my-client")
	t.Setenv("ALTERNATE_CDN_ENABLED", "false")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("GLOBAL_PROXIES", "socks5://a:1080, http://b:3128")
	t.Setenv("UTLS_DOMAINS", "ttv.lol")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, "my-client", cfg.ClientID)
	assert.False(t, cfg.AlternateCDNEnabled)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, []string{"socks5://a:1080", "http://b:3128"}, cfg.GlobalProxies)
	assert.Equal(t, []string{"ttv.lol"}, cfg.UTLSDomains)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
port: 8081
log_level: debug
alternate_cdn_enabled: false
request_timeout: 3s
transport_routes:
  - url: usher.twitch.tv
    proxy: socks5://127.0.0.1:1080
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel, "env wins over file")
	assert.False(t, cfg.AlternateCDNEnabled)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	require.Len(t, cfg.TransportRoutes, 1)
	assert.Equal(t, "usher.twitch.tv", cfg.TransportRoutes[0].URLPattern)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.TransportRoutes[0].Proxy)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"empty client id", func(c *Config) { c.ClientID = " " }, "client id must not be empty"},
		{"relative gql url", func(c *Config) { c.GQLURL = "/gql" }, "gql_url"},
		{"ftp usher", func(c *Config) { c.UsherURL = "ftp://usher" }, "usher_url"},
		{"negative rps", func(c *Config) { c.RateLimitRPS = -1 }, "rate_limit_rps"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseTransportRoutes(t *testing.T) {
	routes := parseTransportRoutes("{URL=ttv.lol, PROXY=socks5://p:1080}, {URL=usher.twitch.tv, DIRECT=true, DISABLE_SSL=true}")

	require.Len(t, routes, 2)
	assert.Equal(t, TransportRoute{URLPattern: "ttv.lol", Proxy: "socks5://p:1080"}, routes[0])
	assert.Equal(t, TransportRoute{URLPattern: "usher.twitch.tv", Direct: true, DisableSSL: true}, routes[1])

	assert.Nil(t, parseTransportRoutes(""))
	assert.Empty(t, parseTransportRoutes("{PROXY=socks5://p:1080}"))
}

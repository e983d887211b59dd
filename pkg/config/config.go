// Package config handles application configuration from environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Upstream defaults.
const (
	DefaultClientID        = "kimne78kx3ncx6brgo4mv6wki5h1ko"
	DefaultGQLURL          = "https://gql.twitch.tv/gql"
	DefaultAlternateCDNURL = "https://api.ttv.lol"
	DefaultUsherURL        = "http://usher.twitch.tv"
	DefaultPlayerOrigin    = "https://player.twitch.tv"
	DefaultDonateTo        = "https://ttv.lol/donate"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int           `yaml:"port"`
	BaseURL      string        `yaml:"base_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// Authentication
	APIPassword string `yaml:"api_password"`

	// Rate limiting for the HTTP API. Zero RPS disables it.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Proxy settings
	GlobalProxies   []string         `yaml:"global_proxies"`
	TransportRoutes []TransportRoute `yaml:"transport_routes"`
	UTLSDomains     []string         `yaml:"utls_domains"`

	// Upstream endpoints
	ClientID            string        `yaml:"client_id"`
	GQLURL              string        `yaml:"gql_url"`
	AlternateCDNURL     string        `yaml:"alternate_cdn_url"`
	AlternateCDNEnabled bool          `yaml:"alternate_cdn_enabled"`
	UsherURL            string        `yaml:"usher_url"`
	PlayerOrigin        string        `yaml:"player_origin"`
	DonateTo            string        `yaml:"donate_to"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`

	// Stremio addon routes under /stremio
	StremioEnabled bool `yaml:"stremio_enabled"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string `yaml:"url"`
	Proxy      string `yaml:"proxy"`
	DisableSSL bool   `yaml:"disable_ssl"`
	Direct     bool   `yaml:"direct"` // bypass global proxy and connect directly
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:                7860,
		BaseURL:             "http://localhost:7860",
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        120 * time.Second,
		IdleTimeout:         60 * time.Second,
		RateLimitRPS:        0,
		RateLimitBurst:      20,
		ClientID:            DefaultClientID,
		GQLURL:              DefaultGQLURL,
		AlternateCDNURL:     DefaultAlternateCDNURL,
		AlternateCDNEnabled: true,
		UsherURL:            DefaultUsherURL,
		PlayerOrigin:        DefaultPlayerOrigin,
		DonateTo:            DefaultDonateTo,
		RequestTimeout:      15 * time.Second,
		StremioEnabled:      true,
		LogLevel:            "info",
	}
}

// Load builds configuration from defaults, then CONFIG_FILE (if set), then
// environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	portSet := os.Getenv("PORT") != ""
	c.Port = getEnvInt("PORT", c.Port)
	if portSet && os.Getenv("BASE_URL") == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	c.BaseURL = getEnvString("BASE_URL", c.BaseURL)
	c.ReadTimeout = getEnvDuration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout)
	c.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", c.IdleTimeout)
	c.APIPassword = getEnvString("API_PASSWORD", c.APIPassword)
	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.GlobalProxies = getEnvStringSlice("GLOBAL_PROXIES", c.GlobalProxies)
	c.UTLSDomains = getEnvStringSlice("UTLS_DOMAINS", c.UTLSDomains)
	c.ClientID = getEnvString("TWITCH_CLIENT_ID", c.ClientID)
	c.GQLURL = getEnvString("GQL_URL", c.GQLURL)
	c.AlternateCDNURL = getEnvString("ALTERNATE_CDN_URL", c.AlternateCDNURL)
	c.AlternateCDNEnabled = getEnvBool("ALTERNATE_CDN_ENABLED", c.AlternateCDNEnabled)
	c.UsherURL = getEnvString("USHER_URL", c.UsherURL)
	c.PlayerOrigin = getEnvString("PLAYER_ORIGIN", c.PlayerOrigin)
	c.DonateTo = getEnvString("DONATE_TO", c.DonateTo)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.StremioEnabled = getEnvBool("STREMIO_ENABLED", c.StremioEnabled)
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvBool("LOG_JSON", c.LogJSON)

	if routes := parseTransportRoutes(os.Getenv("TRANSPORT_ROUTES")); routes != nil {
		c.TransportRoutes = routes
	}

	// Legacy single proxy support
	if globalProxy := os.Getenv("GLOBAL_PROXY"); globalProxy != "" && len(c.GlobalProxies) == 0 {
		c.GlobalProxies = []string{globalProxy}
	}
}

// Validate reports configuration values the resolver cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, errors.New("client id must not be empty"))
	}
	for name, raw := range map[string]string{
		"gql_url":           c.GQLURL,
		"alternate_cdn_url": c.AlternateCDNURL,
		"usher_url":         c.UsherURL,
		"player_origin":     c.PlayerOrigin,
	} {
		if err := validateAbsURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_rps %v must not be negative", c.RateLimitRPS))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout %v must be positive", c.RequestTimeout))
	}
	return errors.Join(errs...)
}

func validateAbsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	s = strings.TrimSpace(s)

	parts := strings.Split(s, "}, {")
	for _, part := range parts {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		for _, field := range strings.Split(part, ", ") {
			kv := strings.SplitN(field, "=", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.TrimSpace(kv[0])
			value := strings.TrimSpace(kv[1])

			switch strings.ToUpper(key) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = strings.ToLower(value) == "true"
			case "DIRECT":
				route.Direct = strings.ToLower(value) == "true"
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Bare integers are seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}

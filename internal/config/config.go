// Package config resolves proxy configuration from an optional YAML file
// overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 3000
	DefaultRateLimit    = 60
	DefaultRateWindow   = 60 * time.Second
	DefaultStallTimeout = 30 * time.Second

	DefaultBaseURL  = "https://gigachat.devices.sberbank.ru/api/v1"
	DefaultOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultScope    = "GIGACHAT_API_PERS"

	// DevAPIKey is used when no API keys are configured; a warning is
	// logged at startup.
	DevAPIKey = "dev-api-key-change-me-in-production"
)

var ErrMissingCredential = errors.New("MASTER_TOKEN is not set")

type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MasterCredential is the pre-encoded Basic auth credential for the
	// vendor OAuth endpoint. Required.
	MasterCredential string `yaml:"master_token"`

	BaseURL  string `yaml:"base_url"`
	OAuthURL string `yaml:"oauth_url"`
	Scope    string `yaml:"scope"`

	// CABundle optionally points at an extra PEM bundle trusted for vendor
	// TLS; Insecure disables verification.
	CABundle string `yaml:"ca_bundle"`
	Insecure bool   `yaml:"insecure"`

	APIKeys        []string `yaml:"api_keys"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`

	ForceSSL bool `yaml:"force_ssl"`

	StallTimeout time.Duration `yaml:"stall_timeout"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LogUseColor bool   `yaml:"log_use_color"`

	// UsingDevKey is set when the API key allow-list fell back to the
	// fixed development key.
	UsingDevKey bool `yaml:"-"`
}

// Manager loads and holds an immutable configuration snapshot.
type Manager struct {
	configPath  string
	configValue atomic.Value
}

// NewManager creates a manager. configPath may be empty, in which case only
// defaults and environment variables apply.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Load resolves the configuration: defaults, then the YAML file if present,
// then environment overrides. Fails when the master credential is missing.
func (m *Manager) Load() (*Config, error) {
	cfg := defaults()

	if m.configPath != "" {
		data, err := os.ReadFile(m.configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("unmarshal config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.MasterCredential == "" {
		return nil, ErrMissingCredential
	}

	if len(cfg.APIKeys) == 0 {
		cfg.APIKeys = []string{DevAPIKey}
		cfg.UsingDevKey = true
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	m.configValue.Store(cfg)

	return cfg, nil
}

// Get returns the last loaded snapshot, or nil when Load has not succeeded.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	return nil
}

func defaults() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		BaseURL:      DefaultBaseURL,
		OAuthURL:     DefaultOAuthURL,
		Scope:        DefaultScope,
		RateLimit:    DefaultRateLimit,
		RateWindow:   DefaultRateWindow,
		StallTimeout: DefaultStallTimeout,
		LogLevel:     "info",
		LogFormat:    "text",
		LogUseColor:  true,
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Host, "HOST")
	setInt(&cfg.Port, "PORT")
	setString(&cfg.MasterCredential, "MASTER_TOKEN")
	setString(&cfg.BaseURL, "GIGACHAT_BASE_URL")
	setString(&cfg.OAuthURL, "GIGACHAT_OAUTH_URL")
	setString(&cfg.Scope, "GIGACHAT_SCOPE")
	setString(&cfg.CABundle, "GIGACHAT_CA_BUNDLE")
	setBool(&cfg.Insecure, "GIGACHAT_INSECURE")
	setCSV(&cfg.APIKeys, "API_KEYS")
	setCSV(&cfg.AllowedOrigins, "ALLOWED_ORIGINS")
	setInt(&cfg.RateLimit, "DEFAULT_RATE_LIMIT")
	setSeconds(&cfg.RateWindow, "DEFAULT_RATE_WINDOW")
	setBool(&cfg.ForceSSL, "FORCE_SSL")
	setSeconds(&cfg.StallTimeout, "STALL_TIMEOUT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setBool(&cfg.LogUseColor, "LOG_USE_COLOR")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setSeconds(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func setCSV(dst *[]string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")

		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}

		if len(out) > 0 {
			*dst = out
		}
	}
}

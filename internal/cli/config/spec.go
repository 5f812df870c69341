package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/salesdesk-go/internal/storage"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// DefaultDevProxyURL is where salesdesk-proxy listens in development.
const DefaultDevProxyURL = "http://localhost:5173/api"

// CLIConfig is the configuration shared by salesdesk-cli and salesdesk-proxy
// (~/.salesdesk/cli.yaml).
type CLIConfig struct {
	// Env selects the base URL: production uses API.URL, anything else the
	// dev proxy.
	Env     string        `koanf:"env" yaml:"env" json:"env"`
	API     APIConfig     `koanf:"api" yaml:"api" json:"api"`
	Session SessionConfig `koanf:"session" yaml:"session" json:"session"`
	Output  OutputConfig  `koanf:"output" yaml:"output" json:"output"`
	Log     logger.Config `koanf:"log" yaml:"log" json:"log"`
	Proxy   ProxyConfig   `koanf:"proxy" yaml:"proxy" json:"proxy"`
}

// APIConfig configures the request engine.
type APIConfig struct {
	URL                string        `koanf:"url" yaml:"url" json:"url"`
	DevProxyURL        string        `koanf:"dev_proxy_url" yaml:"dev_proxy_url" json:"dev_proxy_url"`
	Timeout            time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`
	MaxAttempts        int           `koanf:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BaseDelay          time.Duration `koanf:"base_delay" yaml:"base_delay" json:"base_delay"`
	RateLimit          float64       `koanf:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateBurst          int           `koanf:"rate_burst" yaml:"rate_burst" json:"rate_burst"`
	CAFile             string        `koanf:"ca_file" yaml:"ca_file" json:"ca_file"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify" yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// SessionConfig configures where the session is persisted.
type SessionConfig struct {
	Dir     string `koanf:"dir" yaml:"dir" json:"dir"`
	Backend string `koanf:"backend" yaml:"backend" json:"backend"`
	// EncryptionKey seals the stored token when set. Never printed.
	EncryptionKey string `koanf:"encryption_key" yaml:"encryption_key" json:"encryption_key"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	Format string `koanf:"format" yaml:"format" json:"format"`
	Wide   bool   `koanf:"wide" yaml:"wide" json:"wide"`
}

// ProxyConfig configures salesdesk-proxy.
type ProxyConfig struct {
	Addr           string   `koanf:"addr" yaml:"addr" json:"addr"`
	Upstream       string   `koanf:"upstream" yaml:"upstream" json:"upstream"`
	AllowedOrigins []string `koanf:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// Default returns the default configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Env: EnvDevelopment,
		API: APIConfig{
			DevProxyURL: DefaultDevProxyURL,
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			RateBurst:   1,
		},
		Session: SessionConfig{
			Dir:     DefaultSessionDir(),
			Backend: storage.BackendBadger,
		},
		Output: OutputConfig{Format: FormatTable},
		Log: logger.Config{
			Level:  "warn",
			Format: "text",
		},
		Proxy: ProxyConfig{
			Addr:           ":5173",
			Upstream:       "http://localhost:3000",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
	}
}

// DefaultSessionDir returns ~/.salesdesk/session.
func DefaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".salesdesk", "session")
	}
	return filepath.Join(home, ".salesdesk", "session")
}

// ResolveBaseURL picks the backend base URL. An explicit override wins;
// otherwise production uses API.URL and every other environment the dev
// proxy.
func (c *CLIConfig) ResolveBaseURL(override string) string {
	if override != "" {
		return override
	}
	if c.Env == EnvProduction && c.API.URL != "" {
		return c.API.URL
	}
	if c.API.DevProxyURL != "" {
		return c.API.DevProxyURL
	}
	return DefaultDevProxyURL
}

// KVConfig returns the storage configuration for the session store.
func (c *CLIConfig) KVConfig() storage.KVConfig {
	kv := storage.DefaultKVConfig(c.Session.Dir)
	if c.Session.Backend != "" {
		kv.Backend = c.Session.Backend
	}
	kv.EncryptionKey = c.Session.EncryptionKey
	return kv
}

// Verify reports every invalid field at once.
func (c *CLIConfig) Verify() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("env: must be %s or %s, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Env == EnvProduction && c.API.URL == "" {
		errs = append(errs, errors.New("api.url: required when env is production"))
	}
	for key, raw := range map[string]string{
		"api.url":           c.API.URL,
		"api.dev_proxy_url": c.API.DevProxyURL,
		"proxy.upstream":    c.Proxy.Upstream,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: invalid URL %q", key, raw))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout: must be positive"))
	}
	if c.API.MaxAttempts < 1 {
		errs = append(errs, errors.New("api.max_attempts: must be at least 1"))
	}
	if c.API.BaseDelay < 0 {
		errs = append(errs, errors.New("api.base_delay: must not be negative"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit: must not be negative"))
	}

	switch c.Session.Backend {
	case storage.BackendBadger, storage.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("session.backend: unknown backend %q", c.Session.Backend))
	}
	if c.Session.Backend == storage.BackendBadger && c.Session.Dir == "" {
		errs = append(errs, errors.New("session.dir: required for badger backend"))
	}

	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// Sanitize returns a copy safe to print.
func (c *CLIConfig) Sanitize() *CLIConfig {
	out := *c
	out.Proxy.AllowedOrigins = append([]string(nil), c.Proxy.AllowedOrigins...)
	if out.Session.EncryptionKey != "" {
		out.Session.EncryptionKey = logger.RedactToken(out.Session.EncryptionKey)
	}
	out.Log.Output = nil
	return &out
}

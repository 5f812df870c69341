package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Env string `koanf:"env"`
	API struct {
		URL         string        `koanf:"url"`
		DevProxyURL string        `koanf:"dev_proxy_url"`
		Timeout     time.Duration `koanf:"timeout"`
		MaxAttempts int           `koanf:"max_attempts"`
	} `koanf:"api"`
	Proxy struct {
		AllowedOrigins []string `koanf:"allowed_origins"`
	} `koanf:"proxy"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
	if l.dotEnvPath != DefaultDotEnvFile {
		t.Errorf("dotEnvPath = %q, want %q", l.dotEnvPath, DefaultDotEnvFile)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/cli.yaml"),
		WithDotEnv(""),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/cli.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
	if l.dotEnvPath != "" {
		t.Errorf("dotEnvPath = %q, want empty", l.dotEnvPath)
	}
}

func TestEnvKey(t *testing.T) {
	l := NewLoader()
	tests := []struct {
		in   string
		want string
	}{
		{"SALESDESK_ENV", "env"},
		{"SALESDESK_API_URL", "api.url"},
		{"SALESDESK_API_DEV_PROXY_URL", "api.dev_proxy_url"},
		{"SALESDESK_SESSION_ENCRYPTION_KEY", "session.encryption_key"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := l.envKey(tt.in); got != tt.want {
				t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cli.yaml", `
env: production
api:
  url: "https://api.example.com"
  max_attempts: 5
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if got := l.GetString("api.url"); got != "https://api.example.com" {
		t.Errorf("api.url = %q", got)
	}
	if got := l.GetInt("api.max_attempts"); got != 5 {
		t.Errorf("api.max_attempts = %d", got)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/cli.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
	if err := l.LoadFileIfExists("/nonexistent/cli.yaml"); err != nil {
		t.Errorf("LoadFileIfExists() error = %v", err)
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("SALESDESK_API_DEV_PROXY_URL", "http://localhost:9999/api")
	t.Setenv("SALESDESK_API_MAX_ATTEMPTS", "4")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := l.GetString("api.dev_proxy_url"); got != "http://localhost:9999/api" {
		t.Errorf("api.dev_proxy_url = %q", got)
	}
	if got := l.GetInt("api.max_attempts"); got != 4 {
		t.Errorf("api.max_attempts = %d", got)
	}
}

func TestLoader_LoadEnv_Alias(t *testing.T) {
	t.Run("alias alone", func(t *testing.T) {
		t.Setenv("VITE_API_URL", "https://vite.example.com")

		l := NewLoader()
		if err := l.LoadEnv(); err != nil {
			t.Fatal(err)
		}
		if got := l.GetString("api.url"); got != "https://vite.example.com" {
			t.Errorf("api.url = %q", got)
		}
	})

	t.Run("prefixed wins", func(t *testing.T) {
		t.Setenv("VITE_API_URL", "https://vite.example.com")
		t.Setenv("SALESDESK_API_URL", "https://salesdesk.example.com")

		l := NewLoader()
		if err := l.LoadEnv(); err != nil {
			t.Fatal(err)
		}
		if got := l.GetString("api.url"); got != "https://salesdesk.example.com" {
			t.Errorf("api.url = %q", got)
		}
	})
}

func TestLoader_LoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "VITE_API_URL=https://dotenv.example.com\nSALESDESK_ENV=production\nOTHER=ignored\n")

	l := NewLoader()
	if err := l.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := l.GetString("api.url"); got != "https://dotenv.example.com" {
		t.Errorf("api.url = %q", got)
	}
	if got := l.GetString("env"); got != "production" {
		t.Errorf("env = %q", got)
	}
	if l.Exists("other") {
		t.Error("unprefixed variable leaked into config")
	}
	if _, ok := os.LookupEnv("SALESDESK_ENV"); ok {
		t.Error("LoadDotEnv() modified the process environment")
	}

	if err := l.LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadDotEnv(missing) error = %v", err)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()

	if err := l.LoadMap(map[string]any{
		"api": map[string]any{"url": "http://flag:3000"},
		"env": "development",
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if got := l.GetString("api.url"); got != "http://flag:3000" {
		t.Errorf("api.url = %q", got)
	}
	if got := l.GetString("env"); got != "development" {
		t.Errorf("env = %q", got)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "cli.yaml", `
api:
  url: "http://from-file"
  dev_proxy_url: "http://file-proxy/api"
  max_attempts: 2
`)
	dotEnv := writeFile(t, dir, ".env", "SALESDESK_API_URL=http://from-dotenv\nSALESDESK_API_DEV_PROXY_URL=http://dotenv-proxy/api\n")
	t.Setenv("SALESDESK_API_URL", "http://from-env")

	l := NewLoader(WithConfigFile(configPath), WithDotEnv(dotEnv))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.URL != "http://from-env" {
		t.Errorf("URL = %q, env should override .env and file", cfg.API.URL)
	}
	if cfg.API.DevProxyURL != "http://dotenv-proxy/api" {
		t.Errorf("DevProxyURL = %q, .env should override file", cfg.API.DevProxyURL)
	}
	if cfg.API.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want file value 2", cfg.API.MaxAttempts)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_Unmarshal_Types(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "cli.yaml", `
api:
  timeout: 3s
`)
	t.Setenv("SALESDESK_PROXY_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	l := NewLoader(WithConfigFile(configPath), WithDotEnv(""))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.API.Timeout)
	}
	if len(cfg.Proxy.AllowedOrigins) != 2 || cfg.Proxy.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.Proxy.AllowedOrigins)
	}
}

func TestLoader_DefaultsSurvive(t *testing.T) {
	l := NewLoader(WithDotEnv(""))

	var cfg testConfig
	cfg.API.DevProxyURL = "http://localhost:5173/api"
	if err := l.Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.API.DevProxyURL != "http://localhost:5173/api" {
		t.Errorf("default overwritten: %q", cfg.API.DevProxyURL)
	}
}

func TestLoader_Set(t *testing.T) {
	l := NewLoader()
	if err := l.Set("output.format", "yaml"); err != nil {
		t.Fatal(err)
	}
	if got := l.GetString("output.format"); got != "yaml" {
		t.Errorf("output.format = %q", got)
	}
	if len(l.Keys()) != 1 || len(l.All()) != 1 {
		t.Errorf("Keys() = %v", l.Keys())
	}
	if l.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
	if l.GetBool("missing") {
		t.Error("GetBool(missing) should be false")
	}
}

package command

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestConfigPath(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != h.configPath() {
		t.Errorf("path = %q, want %q", out, h.configPath())
	}
}

func TestConfigShow(t *testing.T) {
	h := newHarness(t)
	t.Setenv("SALESDESK_SESSION_ENCRYPTION_KEY", "super-secret-passphrase")

	out, _, err := h.run("", "-o", "json", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret-passphrase") {
		t.Error("config show printed the encryption key")
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	api, ok := cfg["api"].(map[string]any)
	if !ok || api["dev_proxy_url"] == nil {
		t.Errorf("config = %v, want api section", cfg)
	}
}

func TestConfigShow_DefaultsToYAML(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dev_proxy_url:") {
		t.Errorf("output = %q, want YAML", out)
	}
}

func TestConfigSet(t *testing.T) {
	h := newHarness(t)
	t.Setenv("SALESDESK_ENV", "production")
	t.Setenv("SALESDESK_API_URL", "https://api.shop.test")

	out, _, err := h.run("", "config", "set", "api.max_attempts", "5")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if !strings.Contains(out, "Set api.max_attempts") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(h.configPath())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "max_attempts: 5") {
		t.Errorf("file = %q", text)
	}
	if !strings.Contains(text, "base_delay: 1ms") {
		t.Errorf("existing file values lost: %q", text)
	}
	if strings.Contains(text, "api.shop.test") || strings.Contains(text, "production") {
		t.Errorf("environment leaked into file: %q", text)
	}
}

func TestConfigSet_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "api.nope", "1"}},
		{"missing value", []string{"config", "set", "api.url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if _, _, err := h.run("", tt.args...); !IsUsageError(err) {
				t.Errorf("error = %v, want usage error", err)
			}
		})
	}

	h := newHarness(t)
	if _, _, err := h.run("", "config", "set", "output.format", "xml"); err == nil {
		t.Error("invalid value should not be saved")
	}
}

func TestConfigKeys(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "config", "keys")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"api.url", "api.max_attempts", "session.backend", "proxy.upstream"} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("keys missing %q", want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "API base URL: "+h.server.URL) {
		t.Errorf("output = %q", out)
	}

	t.Setenv("SALESDESK_ENV", "production")
	if _, _, err := h.run("", "config", "validate"); err == nil {
		t.Error("production without api.url should be invalid")
	}
}

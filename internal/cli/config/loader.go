package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/salesdesk-go/internal/infra/confloader"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".salesdesk", "cli.yaml")
	}
	return filepath.Join(homeDir, ".salesdesk", "cli.yaml")
}

// Load builds the configuration from defaults, the file at path (missing
// is fine), .env, the environment and finally flag overrides, which are
// dotted keys such as "api.url".
func Load(path string, overrides map[string]any) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	l := confloader.NewLoader()
	if err := l.LoadFileIfExists(path); err != nil {
		return nil, err
	}
	if err := l.LoadDotEnv(confloader.DefaultDotEnvFile); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := l.LoadEnv(); err != nil {
		return nil, err
	}
	for _, key := range sortedKeys(overrides) {
		if err := l.Set(key, overrides[key]); err != nil {
			return nil, fmt.Errorf("apply %s: %w", key, err)
		}
	}

	cfg := Default()
	if err := l.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads defaults plus the file at path only, ignoring the
// environment. Used when editing the file so env values are not persisted.
func LoadFile(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	l := confloader.NewLoader(confloader.WithDotEnv(""))
	if err := l.LoadFileIfExists(path); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := l.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Set returns a copy of cfg with one dotted key changed. Values are given
// as strings and converted to the field type. Unknown keys are rejected.
func Set(cfg *CLIConfig, key, value string) (*CLIConfig, error) {
	known, err := toMap(Default())
	if err != nil {
		return nil, err
	}
	kl := confloader.NewLoader(confloader.WithDotEnv(""))
	if err := kl.LoadMap(known); err != nil {
		return nil, err
	}
	if !kl.Exists(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}

	current, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	l := confloader.NewLoader(confloader.WithDotEnv(""))
	if err := l.LoadMap(current); err != nil {
		return nil, err
	}
	if err := l.Set(key, value); err != nil {
		return nil, err
	}

	out := &CLIConfig{}
	if err := l.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

// Keys lists every settable key in sorted order.
func Keys() []string {
	m, err := toMap(Default())
	if err != nil {
		return nil
	}
	l := confloader.NewLoader(confloader.WithDotEnv(""))
	if err := l.LoadMap(m); err != nil {
		return nil
	}
	keys := l.Keys()
	sort.Strings(keys)
	return keys
}

// toMap converts cfg to a nested map through its YAML form.
func toMap(cfg *CLIConfig) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return m, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

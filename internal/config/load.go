package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfig names a config file when --config is not given.
const EnvConfig = "GLBVIEW_CONFIG"

const sidecarName = "glbview.yaml"

// Load loads configuration with priority: defaults < file < flags.
// The merged result is validated before it is returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := resolveConfigFile(ConfigPath(), os.Getenv(EnvConfig), *flagModel)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		cfg.file = path
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// File returns the config file the settings were read from, or "" when only
// defaults and flags apply.
func (c *Config) File() string {
	return c.file
}

// resolveConfigFile picks the config file to read. An explicit path (the
// --config flag, then the environment) must exist. Otherwise the first
// existing search candidate wins and no match is not an error.
func resolveConfigFile(flagPath, envPath, model string) (string, error) {
	for _, explicit := range []string{flagPath, envPath} {
		if explicit == "" {
			continue
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	for _, path := range searchPaths(model) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return "", nil
}

// searchPaths lists implicit config locations, most specific first: a
// glbview.yaml beside a local model, the working directory, then the user
// config directory.
func searchPaths(model string) []string {
	var paths []string
	if model != "" && !strings.Contains(model, "://") {
		paths = append(paths, filepath.Join(filepath.Dir(model), sidecarName))
	}
	paths = append(paths, sidecarName, filepath.Join(ConfigDir(), "config.yaml"))

	// A model in the working directory yields the same sidecar twice.
	out := paths[:0]
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		c := filepath.Clean(p)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "glbview")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "glbview")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "glbview")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "glbview")
	}
}

// loadFromFile merges a YAML file over the values already in cfg. Keys the
// file omits keep their current value.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Package config loads and persists forgen's environment configuration:
// provider API keys, default AI transport, cache directory, and the
// debug flag consulted by the retry and AI transport packages.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/forgen-run/forgen/utils/fileutil"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds credentials for one AI provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// TransportConfig configures the default AI transport.
type TransportConfig struct {
	Kind    string `yaml:"kind"` // "stdout" | "command" | "api"
	Command string `yaml:"command,omitempty"`
	Mode    string `yaml:"mode,omitempty"` // "batched" | "per-block"
	Model   string `yaml:"model,omitempty"`
}

// ServerConfig configures the `forgen serve` HTTP server.
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	BearerToken string `yaml:"bearer_token,omitempty"`
	DataDir     string `yaml:"data_dir,omitempty"`
}

// EnvConfig is the root of ~/.forgen/config.yaml.
type EnvConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Transport TransportConfig           `yaml:"transport"`
	CacheDir  string                    `yaml:"cache_dir,omitempty"`
	Debug     bool                      `yaml:"debug,omitempty"`
	Server    *ServerConfig             `yaml:"server,omitempty"`
}

// GetServerConfig returns the configured server block, or sensible
// defaults (disabled auth, port 8080, current directory as data dir) when the
// config file has none.
func (c *EnvConfig) GetServerConfig() *ServerConfig {
	if c != nil && c.Server != nil {
		return c.Server
	}
	return &ServerConfig{Enabled: false, Port: 8080, DataDir: "."}
}

var (
	debugMu      sync.RWMutex
	debugEnabled bool
)

// SetDebug toggles whether DebugLog emits output. Tools and the retry
// package call DebugLog so a single flag gates all of them.
func SetDebug(enabled bool) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
}

// DebugLog prints a debug message when debug mode is enabled. It never
// errors and is safe to call from any goroutine.
func DebugLog(format string, args ...interface{}) {
	debugMu.RLock()
	enabled := debugEnabled
	debugMu.RUnlock()
	if !enabled {
		return
	}
	fmt.Printf("[DEBUG] "+format+"\n", args...)
}

// GetConfigPath returns the default location of the config file,
// honoring $FORGEN_CONFIG before falling back to ~/.forgen/config.yaml.
func GetConfigPath() string {
	if p := os.Getenv("FORGEN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forgen/config.yaml"
	}
	return filepath.Join(home, ".forgen", "config.yaml")
}

// Load reads and parses the config file at path. A missing file
// returns a zero-value EnvConfig, not an error, so first-run commands
// succeed with defaults.
func Load(path string) (*EnvConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &EnvConfig{Transport: TransportConfig{Kind: "stdout"}}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg EnvConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = "stdout"
	}
	return &cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg *EnvConfig) error {
	expanded, err := fileutil.ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Provider returns the configuration for the named provider, or a
// zero-value ProviderConfig if none was set.
func (c *EnvConfig) Provider(name string) ProviderConfig {
	if c == nil || c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[name]
}

// CacheDirOrDefault returns the configured cache directory or a
// per-user default under the OS cache dir. The cache holds parsed
// recipes and rendered prompt artifacts; it is safe to delete at any
// time.
func (c *EnvConfig) CacheDirOrDefault() string {
	if c != nil && c.CacheDir != "" {
		return c.CacheDir
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "forgen")
	}
	return filepath.Join(dir, "forgen")
}

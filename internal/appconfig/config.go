// Package appconfig holds the server's own runtime configuration: docroot,
// MCP tool-name prefix, XDG paths, and the optional telemetry/storage
// backends. Follows the teacher's config.go/config_load.go pattern exactly
// (Default() + Load() over json5, env-var overlay, mutex-guarded Save) —
// only the field content is new, since the teacher's own fields (channels,
// providers, agents) are out of this server's domain.
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/titanous/json5"
)

// Config is the server's root configuration.
type Config struct {
	// Docroot is the project root the security policy and file cache
	// operate relative to.
	Docroot string `json:"docroot"`

	// ToolPrefix is prepended to every registered MCP tool name (the
	// spec's tool_prefix template value), letting multiple server
	// instances coexist behind one agent without name collisions.
	ToolPrefix string `json:"tool_prefix"`

	// ContentStyle is the template-selection hint surfaced in the agent
	// sub-context (e.g. "concise", "verbose").
	ContentStyle string `json:"content_style"`

	// ConfigDir overrides XDG_CONFIG_HOME-derived project config storage.
	ConfigDir string `json:"config_dir,omitempty"`

	FileCache FileCacheConfig `json:"file_cache"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Gateway   GatewayConfig   `json:"gateway"`
	Dev       DevConfig       `json:"dev,omitempty"`

	mu sync.RWMutex
}

// FileCacheConfig configures the bridge's FileCache budgets.
type FileCacheConfig struct {
	MaxSizeBytes int `json:"max_size_bytes,omitempty"`
	MaxEntries   int `json:"max_entries,omitempty"`
}

// TelemetryConfig configures the optional OTel tracer, mirroring the
// teacher's TelemetryConfig shape.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint,omitempty"`
	Protocol    string `json:"protocol,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// StorageConfig configures the optional durable SQLite-backed store for
// periodic task-manager statistics snapshots (internal/statsstore).
type StorageConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// DevConfig configures local-development-only behaviour.
type DevConfig struct {
	// Watch enables an fsnotify-backed watcher over Docroot that
	// invalidates the template renderer's cache as files change, so a
	// template edit is picked up without restarting the server.
	Watch bool `json:"watch,omitempty"`
}

// GatewayConfig holds MCP transport settings. The serve command reads none
// of them: it always serves over stdio, and there is no HTTP transport.
type GatewayConfig struct {
	Transport string `json:"transport"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Docroot:      ".",
		ToolPrefix:   "guide",
		ContentStyle: "concise",
		FileCache: FileCacheConfig{
			MaxSizeBytes: 10 * 1024 * 1024,
			MaxEntries:   1000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "guidemcp-gateway",
			Protocol:    "http/protobuf",
		},
		Gateway: GatewayConfig{
			Transport: "stdio",
			Host:      "127.0.0.1",
			Port:      8765,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error — Default() with env overrides is returned instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("GUIDEMCP_DOCROOT", &c.Docroot)
	envStr("GUIDEMCP_TOOL_PREFIX", &c.ToolPrefix)
	envStr("GUIDEMCP_CONTENT_STYLE", &c.ContentStyle)
	envStr("GUIDEMCP_CONFIG_DIR", &c.ConfigDir)
	envStr("GUIDEMCP_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("GUIDEMCP_GATEWAY_TRANSPORT", &c.Gateway.Transport)
	envStr("GUIDEMCP_GATEWAY_HOST", &c.Gateway.Host)
	envStr("GUIDEMCP_STORAGE_PATH", &c.Storage.Path)

	if v := os.Getenv("GUIDEMCP_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GUIDEMCP_STORAGE_ENABLED"); v != "" {
		c.Storage.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GUIDEMCP_DEV_WATCH"); v != "" {
		c.Dev.Watch = v == "true" || v == "1"
	}
}

// Save writes the config to a JSON file via temp-file-then-rename, matching
// sessions.Manager's atomic-write idiom.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	data, err := marshalIndent(cfg)
	cfg.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}

func marshalIndent(cfg *Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

// DefaultConfigDir resolves the project config directory following the
// same XDG_CONFIG_HOME-first convention the spec calls for.
func DefaultConfigDir(appName string) string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(home, ".config", appName)
}

// Package config loads codexkeep configuration. Precedence, lowest to
// highest: built-in defaults, the vault's .codexkeep.yaml, CODEXKEEP_*
// environment variables. The merged result is validated before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DataDirName is the vault-local directory holding index state.
const DataDirName = ".codexkeep"

// Config represents the complete codexkeep configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Vault    VaultConfig    `yaml:"vault"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Watch    WatchConfig    `yaml:"watch"`
	Template TemplateConfig `yaml:"template"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// VaultConfig configures which documents are scanned.
type VaultConfig struct {
	// Extensions are the document extensions to index, with dot.
	Extensions []string `yaml:"extensions"`
	// MaxFileSizeMB caps document size; larger documents are skipped.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	// Exclude holds extra ignore rules, in .codexkeepignore syntax,
	// applied on top of the vault's ignore file.
	Exclude []string `yaml:"exclude"`
}

// IndexConfig configures the indexing pipeline.
type IndexConfig struct {
	// Workers bounds concurrent document reads (0 = NumCPU).
	Workers int `yaml:"workers"`
}

// SearchConfig configures search behavior.
type SearchConfig struct {
	// MaxResults is the default result cap per query.
	MaxResults int `yaml:"max_results"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Debounce is the quiet window per path, as a duration string.
	Debounce string `yaml:"debounce"`
}

// TemplateConfig selects the active template.
type TemplateConfig struct {
	// Path is an optional template definition YAML to register at startup.
	Path string `yaml:"path"`
	// Active is the template id to activate. Empty means the built-in
	// default template.
	Active string `yaml:"active"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Vault: VaultConfig{
			Extensions:    []string{".md", ".txt"},
			MaxFileSizeMB: 5,
		},
		Index: IndexConfig{
			Workers: runtime.NumCPU(),
		},
		Search: SearchConfig{
			MaxResults: 50,
		},
		Watch: WatchConfig{
			Debounce: "200ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration for a vault directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges .codexkeep.yaml (or .yml) from the vault directory.
// A missing file is fine; defaults apply.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".codexkeep.yaml", ".codexkeep.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Vault.Extensions) > 0 {
		c.Vault.Extensions = other.Vault.Extensions
	}
	if other.Vault.MaxFileSizeMB != 0 {
		c.Vault.MaxFileSizeMB = other.Vault.MaxFileSizeMB
	}
	if len(other.Vault.Exclude) > 0 {
		c.Vault.Exclude = other.Vault.Exclude
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Template.Path != "" {
		c.Template.Path = other.Template.Path
	}
	if other.Template.Active != "" {
		c.Template.Active = other.Template.Active
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies CODEXKEEP_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEXKEEP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODEXKEEP_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("CODEXKEEP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("CODEXKEEP_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("CODEXKEEP_TEMPLATE"); v != "" {
		c.Template.Active = v
	}
	if v := os.Getenv("CODEXKEEP_TEMPLATE_PATH"); v != "" {
		c.Template.Path = v
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.Vault.MaxFileSizeMB <= 0 {
		return fmt.Errorf("vault.max_file_size_mb must be positive, got %d", c.Vault.MaxFileSizeMB)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("watch.debounce %q is not a duration: %w", c.Watch.Debounce, err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// DebounceWindow returns the parsed watch debounce duration.
// Validate guarantees it parses.
func (c *Config) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// MaxFileSize returns the document size cap in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Vault.MaxFileSizeMB) * 1024 * 1024
}

// WriteYAML writes the configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}

// DataDir returns the vault's index state directory.
func DataDir(vaultPath string) string {
	return filepath.Join(vaultPath, DataDirName)
}

// DBPath returns the vault's graph database path.
func DBPath(vaultPath string) string {
	return filepath.Join(DataDir(vaultPath), "codex.db")
}

// Package config provides configuration loading and structs for the searchsync service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Index drivers.
const (
	DriverEmbedded = "embedded"
	DriverRemote   = "remote"
)

// Content drivers.
const (
	ContentSQLite = "sqlite"
	ContentFiles  = "files"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Site    SiteConfig    `yaml:"site"`
	Index   IndexConfig   `yaml:"index"`
	Content ContentConfig `yaml:"content"`
	Sync    SyncConfig    `yaml:"sync"`
	Search  SearchConfig  `yaml:"search"`
	Server  ServerConfig  `yaml:"server"`
}

// SiteConfig identifies the tenant and how its content is addressed.
type SiteConfig struct {
	TenantID    int    `yaml:"tenant_id"`
	Environment string `yaml:"environment"`
	BaseURL     string `yaml:"base_url"`
	// Locale is the site locale used for type labels outside of document builds.
	Locale string `yaml:"locale"`
	// CanonicalLocale is pinned while documents are built.
	CanonicalLocale string `yaml:"canonical_locale"`
	// TypeLabels maps locale -> content type -> human-readable label.
	TypeLabels map[string]map[string]string `yaml:"type_labels"`
}

// IndexConfig selects and addresses the search index.
type IndexConfig struct {
	Driver         string `yaml:"driver"`
	Host           string `yaml:"host"`
	APIKey         string `yaml:"api_key"`
	CollectionName string `yaml:"collection_name"`
	DataPath       string `yaml:"data_path"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	NumRetries     *int   `yaml:"num_retries"`
}

// RetriesOrDefault returns the configured retry count; defaults to 2 when unset.
func (i *IndexConfig) RetriesOrDefault() int {
	if i.NumRetries != nil {
		return *i.NumRetries
	}
	return 2
}

// ContentConfig selects the content store.
type ContentConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
	Directory    string `yaml:"directory"`
	Watch        bool   `yaml:"watch"`
}

// SyncConfig holds eligibility and rebuild settings.
type SyncConfig struct {
	IndexableTypes    []string `yaml:"indexable_types"`
	IndexableStatuses []string `yaml:"indexable_statuses"`
	ExcerptWords      int      `yaml:"excerpt_words"`
	CacheSize         int      `yaml:"cache_size"`
	RebuildSchedule   string   `yaml:"rebuild_schedule"`
	LockPath          string   `yaml:"lock_path"`
}

// SearchConfig holds query translation settings.
type SearchConfig struct {
	DefaultPerPage       int  `yaml:"default_per_page"`
	MaxPerPage           int  `yaml:"max_per_page"`
	HighlightAffixTokens int  `yaml:"highlight_affix_tokens"`
	Disabled             bool `yaml:"disabled"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Index.DataPath = expandPath(cfg.Index.DataPath, configDir)
	cfg.Content.DatabasePath = expandPath(cfg.Content.DatabasePath, configDir)
	cfg.Content.Directory = expandPath(cfg.Content.Directory, configDir)
	cfg.Sync.LockPath = expandPath(cfg.Sync.LockPath, configDir)

	return &cfg, nil
}

// Validate rejects unknown drivers.
func (c *Config) Validate() error {
	switch c.Index.Driver {
	case DriverEmbedded, DriverRemote:
	default:
		return fmt.Errorf("unknown index driver %q", c.Index.Driver)
	}
	switch c.Content.Driver {
	case ContentSQLite, ContentFiles:
	default:
		return fmt.Errorf("unknown content driver %q", c.Content.Driver)
	}
	return nil
}

// TypeLabel returns the label of content type typ in locale, falling back to
// the type code itself when no label is configured.
func (c *Config) TypeLabel(locale, typ string) string {
	if labels, ok := c.Site.TypeLabels[locale]; ok {
		if l := labels[typ]; l != "" {
			return l
		}
	}
	return typ
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

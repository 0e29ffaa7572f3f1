package config

// Default indexable content types and statuses.
var (
	DefaultIndexableTypes    = []string{"page", "nyheter", "driftinformation", "lediga-jobb", "event"}
	DefaultIndexableStatuses = []string{"publish"}
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Site.TenantID == 0 {
		cfg.Site.TenantID = 1
	}
	if cfg.Site.Environment == "" {
		cfg.Site.Environment = "production"
	}
	if cfg.Site.Locale == "" {
		cfg.Site.Locale = "en_US"
	}
	if cfg.Site.CanonicalLocale == "" {
		cfg.Site.CanonicalLocale = "en_US"
	}
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = DriverEmbedded
	}
	if cfg.Index.DataPath == "" {
		cfg.Index.DataPath = "/usr/local/var/searchsync/data/indices"
	}
	if cfg.Index.TimeoutSec == 0 {
		cfg.Index.TimeoutSec = 2
	}
	if cfg.Content.Driver == "" {
		cfg.Content.Driver = ContentSQLite
	}
	if cfg.Content.DatabasePath == "" {
		cfg.Content.DatabasePath = "/usr/local/var/searchsync/data/db/content.db"
	}
	if cfg.Sync.IndexableTypes == nil {
		cfg.Sync.IndexableTypes = append([]string(nil), DefaultIndexableTypes...)
	}
	if cfg.Sync.IndexableStatuses == nil {
		cfg.Sync.IndexableStatuses = append([]string(nil), DefaultIndexableStatuses...)
	}
	if cfg.Sync.ExcerptWords == 0 {
		cfg.Sync.ExcerptWords = 55
	}
	if cfg.Sync.CacheSize == 0 {
		cfg.Sync.CacheSize = 1024
	}
	if cfg.Sync.LockPath == "" {
		cfg.Sync.LockPath = "/usr/local/var/searchsync/build.lock"
	}
	if cfg.Search.DefaultPerPage == 0 {
		cfg.Search.DefaultPerPage = 10
	}
	if cfg.Search.MaxPerPage == 0 {
		cfg.Search.MaxPerPage = 100
	}
	if cfg.Search.HighlightAffixTokens == 0 {
		cfg.Search.HighlightAffixTokens = 20
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

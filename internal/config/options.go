package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hyperjump/searchsync/internal/hooks"
)

// EnvPrefix prefixes environment overrides, e.g. SEARCHSYNC_HOST.
const EnvPrefix = "SEARCHSYNC"

const (
	keyHost           = "host"
	keyAPIKey         = "api_key"
	keyCollectionName = "collection_name"
)

// Options resolves index connection settings. A non-empty environment value
// always wins over the value stored in the config file.
type Options struct {
	vp    *viper.Viper
	cfg   *Config
	hooks *hooks.Hooks
}

// NewOptions creates options backed by cfg. h may be nil.
func NewOptions(cfg *Config, h *hooks.Hooks) *Options {
	vp := viper.New()
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetDefault(keyHost, cfg.Index.Host)
	vp.SetDefault(keyAPIKey, cfg.Index.APIKey)
	vp.SetDefault(keyCollectionName, cfg.Index.CollectionName)
	for _, k := range []string{keyHost, keyAPIKey, keyCollectionName} {
		_ = vp.BindEnv(k)
	}
	return &Options{vp: vp, cfg: cfg, hooks: hooks.OrEmpty(h)}
}

// Host returns the index service address.
func (o *Options) Host() string {
	return strings.TrimSpace(o.vp.GetString(keyHost))
}

// APIKey returns the index credential.
func (o *Options) APIKey() string {
	return strings.TrimSpace(o.vp.GetString(keyAPIKey))
}

// CollectionBase returns the collection base name before prefixing.
func (o *Options) CollectionBase() string {
	return strings.TrimSpace(o.vp.GetString(keyCollectionName))
}

// IsConfigured reports whether enough settings are present to reach the index.
func (o *Options) IsConfigured() bool {
	if o.CollectionBase() == "" {
		return false
	}
	if o.cfg.Index.Driver == DriverRemote {
		return o.Host() != "" && o.APIKey() != ""
	}
	return true
}

// CollectionName returns "{environment}_{tenant}_{base}" passed through the
// CollectionName hook, or "" when no base name is configured.
func (o *Options) CollectionName() string {
	base := o.CollectionBase()
	if base == "" {
		return ""
	}
	name := fmt.Sprintf("%s_%d_%s", o.cfg.Site.Environment, o.cfg.Site.TenantID, base)
	return o.hooks.CollectionName.Apply(name, hooks.None{})
}

// Package config loads the per-kind resolution configuration and the
// process settings.
//
// Configuration is YAML or CUE. CUE files are unified with an embedded
// #Config schema, so defaults and bounds live in one place.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/canon/internal/cache"
	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/queryir"
)

// DefaultCacheTTLMillis is the cache TTL for kinds that configure none.
const DefaultCacheTTLMillis = 60000

// CacheConfig configures a kind's read cache.
type CacheConfig struct {
	Enabled   bool  `yaml:"enabled" json:"enabled"`
	TTLMillis int64 `yaml:"ttl_ms" json:"ttl_ms"`
}

// KindConfig configures one entity kind.
type KindConfig struct {
	// PKFields are the fields resolved by exact typed match.
	PKFields []string `yaml:"pk_fields" json:"pk_fields,omitempty"`
	// KeyFields are the alias fields; the first present one is the primary key.
	KeyFields []string `yaml:"key_fields" json:"key_fields,omitempty"`
	// FieldTypes declares pk field types: string, number, reference or boolean.
	FieldTypes map[string]index.PKType `yaml:"field_types" json:"field_types,omitempty"`
	Cache      CacheConfig             `yaml:"cache" json:"cache"`
}

// Config is the whole resolution configuration.
type Config struct {
	ConfidenceThreshold float64               `yaml:"confidence_threshold" json:"confidence_threshold"`
	AmbiguityDelta      float64               `yaml:"ambiguity_delta" json:"ambiguity_delta"`
	Kinds               map[string]KindConfig `yaml:"kinds" json:"kinds,omitempty"`
}

// Default returns the configuration used when none is supplied.
func Default() Config {
	return Config{
		ConfidenceThreshold: index.DefaultThreshold,
		AmbiguityDelta:      index.DefaultDelta,
		Kinds:               map[string]KindConfig{},
	}
}

// Kind returns the configuration of name, or the defaults if unconfigured.
func (c Config) Kind(name string) KindConfig {
	return c.Kinds[name]
}

// KindNames returns the configured kinds in sorted order.
func (c Config) KindNames() []string {
	names := make([]string, 0, len(c.Kinds))
	for name := range c.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Policy returns the resolution tunables.
func (c Config) Policy() index.Policy {
	return index.Policy{Threshold: c.ConfidenceThreshold, Delta: c.AmbiguityDelta}
}

// CacheOptions returns the cache options of every configured kind.
func (c Config) CacheOptions() map[string]cache.Options {
	opts := make(map[string]cache.Options, len(c.Kinds))
	for name, k := range c.Kinds {
		opts[name] = k.CacheOptions()
	}
	return opts
}

// Schema returns the extraction schema. Empty field lists fall back to
// index.DefaultFields.
func (k KindConfig) Schema() index.Schema {
	schema := index.DefaultSchema()
	if len(k.PKFields) > 0 {
		schema.PKFields = append([]string(nil), k.PKFields...)
	}
	if len(k.KeyFields) > 0 {
		schema.KeyFields = append([]string(nil), k.KeyFields...)
	}
	if len(k.FieldTypes) > 0 {
		schema.FieldTypes = make(map[string]index.PKType, len(k.FieldTypes))
		for f, t := range k.FieldTypes {
			schema.FieldTypes[f] = t
		}
	}
	return schema
}

// CacheOptions returns the cache options of the kind.
func (k KindConfig) CacheOptions() cache.Options {
	ttl := k.Cache.TTLMillis
	if ttl <= 0 {
		ttl = DefaultCacheTTLMillis
	}
	return cache.Options{
		Enabled: k.Cache.Enabled,
		TTL:     time.Duration(ttl) * time.Millisecond,
	}
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// Validate checks bounds and field declarations.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &ValidationError{Field: "confidence_threshold", Message: fmt.Sprintf("%v is outside [0, 1]", c.ConfidenceThreshold)}
	}
	if c.AmbiguityDelta < 0 || c.AmbiguityDelta > 1 {
		return &ValidationError{Field: "ambiguity_delta", Message: fmt.Sprintf("%v is outside [0, 1]", c.AmbiguityDelta)}
	}

	for _, name := range c.KindNames() {
		k := c.Kinds[name]
		prefix := "kinds." + name

		if name == "" {
			return &ValidationError{Field: "kinds", Message: "kind name is empty"}
		}
		for _, list := range []struct {
			label  string
			fields []string
		}{
			{"pk_fields", k.PKFields},
			{"key_fields", k.KeyFields},
		} {
			for _, f := range list.fields {
				if !queryir.ValidField(f) {
					return &ValidationError{Field: prefix + "." + list.label, Message: fmt.Sprintf("%q is not a valid field name", f)}
				}
			}
		}
		for f, t := range k.FieldTypes {
			if !queryir.ValidField(f) {
				return &ValidationError{Field: prefix + ".field_types", Message: fmt.Sprintf("%q is not a valid field name", f)}
			}
			if !t.Valid() {
				return &ValidationError{Field: prefix + ".field_types." + f, Message: fmt.Sprintf("unknown type %q", t)}
			}
		}
		if k.Cache.TTLMillis < 0 {
			return &ValidationError{Field: prefix + ".cache.ttl_ms", Message: "must not be negative"}
		}
	}
	return nil
}

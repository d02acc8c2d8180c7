package routegate

import (
	"errors"
	"time"
)

// Config holds every tunable for the engine. Zero values mean "use the
// default"; Validate rejects values that cannot work rather than guessing.
type Config struct {
	Provider ProviderConfig
	Resolver ResolverConfig
	Session  SessionConfig
	Gate     GateConfig
	Cache    CacheConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig configures the built-in HTTP auth provider client. It is
// ignored when a provider is injected through [Builder.WithProvider].
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	// RefreshLead is how long before token expiry the background refresh
	// fires.
	RefreshLead time.Duration
	// DisableAutoRefresh turns off the background refresh timer.
	DisableAutoRefresh bool
}

/*
====================================
RESOLVER CONFIG
====================================
*/

// ResolverConfig bounds role resolution.
type ResolverConfig struct {
	// Timeout is the per-resolution deadline. Resolutions that exceed it
	// settle as failures and fall back to the least-privileged role.
	Timeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures session state tracking.
type SessionConfig struct {
	// HardStopTimeout is the absolute ceiling on the loading phase. When it
	// fires the session stops loading with whatever role is known, even if
	// resolution is still in flight.
	HardStopTimeout time.Duration
	// WatchBuffer is the per-watcher snapshot channel depth.
	WatchBuffer int
}

/*
====================================
GATE CONFIG
====================================
*/

// GateConfig configures route authorization.
type GateConfig struct {
	LoginPath     string
	ForbiddenPath string
	// FallbackTimeout bounds the live membership checks issued when the
	// cached role is insufficient.
	FallbackTimeout time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig configures the Redis membership cache used on the resolution
// path. The cache is only active when a Redis client is supplied to the
// builder.
type CacheConfig struct {
	Prefix      string
	PositiveTTL time.Duration
	NegativeTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics registry.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			RefreshLead: 30 * time.Second,
		},
		Resolver: ResolverConfig{
			Timeout: 4 * time.Second,
		},
		Session: SessionConfig{
			HardStopTimeout: 8 * time.Second,
			WatchBuffer:     4,
		},
		Gate: GateConfig{
			LoginPath:       "/login",
			ForbiddenPath:   "/403",
			FallbackTimeout: 4 * time.Second,
		},
		Cache: CacheConfig{
			Prefix:      "rg",
			PositiveTTL: 60 * time.Second,
			NegativeTTL: 15 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

func (c *Config) Validate() error {
	// Resolver
	if c.Resolver.Timeout <= 0 {
		return errors.New("Resolver Timeout must be > 0")
	}

	// Session
	if c.Session.HardStopTimeout <= 0 {
		return errors.New("Session HardStopTimeout must be > 0")
	}
	if c.Session.HardStopTimeout < c.Resolver.Timeout {
		return errors.New("Session HardStopTimeout must be >= Resolver Timeout")
	}
	if c.Session.WatchBuffer < 0 {
		return errors.New("Session WatchBuffer must be >= 0")
	}

	// Gate
	if c.Gate.LoginPath == "" || c.Gate.LoginPath[0] != '/' {
		return errors.New("Gate LoginPath must start with /")
	}
	if c.Gate.ForbiddenPath == "" || c.Gate.ForbiddenPath[0] != '/' {
		return errors.New("Gate ForbiddenPath must start with /")
	}
	if c.Gate.LoginPath == c.Gate.ForbiddenPath {
		return errors.New("Gate LoginPath and ForbiddenPath must differ")
	}
	if c.Gate.FallbackTimeout <= 0 {
		return errors.New("Gate FallbackTimeout must be > 0")
	}

	// Cache
	if c.Cache.Prefix == "" {
		return errors.New("Cache Prefix must not be empty")
	}
	if c.Cache.PositiveTTL <= 0 {
		return errors.New("Cache PositiveTTL must be > 0")
	}
	if c.Cache.NegativeTTL <= 0 {
		return errors.New("Cache NegativeTTL must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Provider
	if c.Provider.RefreshLead < 0 {
		return errors.New("Provider RefreshLead must be >= 0")
	}

	return nil
}

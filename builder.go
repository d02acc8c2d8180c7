package routegate

import (
	"github.com/redis/go-redis/v9"

	"github.com/vendalink/routegate/gate"
	internalaudit "github.com/vendalink/routegate/internal/audit"
	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
)

// Builder assembles an Engine. Configure through the With* methods, then
// call Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	authProvider provider.Interface
	routes       []gate.Rule
	auditSink    AuditSink

	built bool
}

// New creates a Builder loaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider injects the upstream auth backend. Required unless
// Config.Provider.BaseURL is set, in which case Build constructs the
// built-in HTTP client.
func (b *Builder) WithProvider(p provider.Interface) *Builder {
	b.authProvider = p
	return b
}

// WithRedis enables the Redis membership cache on the resolution path.
// Without it, every resolution hits the provider directly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoutes replaces the default route table.
func (b *Builder) WithRoutes(rules []gate.Rule) *Builder {
	b.routes = rules
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the metrics registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authorize latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The returned
// Engine is inert until Start.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	authProvider := b.authProvider
	if authProvider == nil {
		if cfg.Provider.BaseURL == "" {
			return nil, ErrProviderRequired
		}
		client, err := provider.NewClient(provider.Config{
			BaseURL:            cfg.Provider.BaseURL,
			APIKey:             cfg.Provider.APIKey,
			RefreshLead:        cfg.Provider.RefreshLead,
			DisableAutoRefresh: cfg.Provider.DisableAutoRefresh,
		})
		if err != nil {
			return nil, err
		}
		authProvider = client
	}

	// -------- MEMBERSHIP CHECKERS --------
	// The gate always checks live: its fallback tier exists to see grants
	// the cache has not. Only the resolver goes through Redis.
	var resolverChecker role.MembershipChecker = authProvider
	var cache *provider.CachedChecker
	if b.redis != nil {
		cache = provider.NewCachedChecker(authProvider, b.redis, provider.CacheConfig{
			Prefix:      cfg.Cache.Prefix,
			PositiveTTL: cfg.Cache.PositiveTTL,
			NegativeTTL: cfg.Cache.NegativeTTL,
		})
		resolverChecker = cache
	}

	// -------- ROUTE TABLE --------
	paths := gate.Paths{
		Login:     cfg.Gate.LoginPath,
		Forbidden: cfg.Gate.ForbiddenPath,
	}
	rules := b.routes
	if rules == nil {
		rules = gate.DefaultRules(paths)
	}
	routes, err := gate.NewRouteTable(rules)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		authProvider: authProvider,
		cache:        cache,
		routes:       routes,
		resolver:     role.NewResolver(resolverChecker, cfg.Resolver.Timeout),
	}

	engine.gate = gate.New(authProvider, engine, gate.Config{
		Paths:           paths,
		FallbackTimeout: cfg.Gate.FallbackTimeout,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(MetricsConfig{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})

	b.built = true

	return engine, nil
}

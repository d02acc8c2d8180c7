package routegate

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Resolver.Timeout != 4*time.Second {
		t.Fatalf("Resolver.Timeout = %v", cfg.Resolver.Timeout)
	}
	if cfg.Session.HardStopTimeout != 8*time.Second {
		t.Fatalf("Session.HardStopTimeout = %v", cfg.Session.HardStopTimeout)
	}
	if cfg.Gate.LoginPath != "/login" || cfg.Gate.ForbiddenPath != "/403" {
		t.Fatalf("gate paths = %q, %q", cfg.Gate.LoginPath, cfg.Gate.ForbiddenPath)
	}
	if cfg.Cache.Prefix != "rg" {
		t.Fatalf("Cache.Prefix = %q", cfg.Cache.Prefix)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero resolver timeout", func(c *Config) { c.Resolver.Timeout = 0 }},
		{"zero hard stop", func(c *Config) { c.Session.HardStopTimeout = 0 }},
		{"hard stop below resolver timeout", func(c *Config) {
			c.Resolver.Timeout = 4 * time.Second
			c.Session.HardStopTimeout = 2 * time.Second
		}},
		{"negative watch buffer", func(c *Config) { c.Session.WatchBuffer = -1 }},
		{"relative login path", func(c *Config) { c.Gate.LoginPath = "login" }},
		{"empty forbidden path", func(c *Config) { c.Gate.ForbiddenPath = "" }},
		{"login equals forbidden", func(c *Config) {
			c.Gate.LoginPath = "/x"
			c.Gate.ForbiddenPath = "/x"
		}},
		{"zero fallback timeout", func(c *Config) { c.Gate.FallbackTimeout = 0 }},
		{"empty cache prefix", func(c *Config) { c.Cache.Prefix = "" }},
		{"zero positive ttl", func(c *Config) { c.Cache.PositiveTTL = 0 }},
		{"zero negative ttl", func(c *Config) { c.Cache.NegativeTTL = 0 }},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
		{"negative refresh lead", func(c *Config) { c.Provider.RefreshLead = -time.Second }},
	}

	for _, tc := range cases {
		cfg := defaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestHardStopEqualToResolverTimeoutAllowed(t *testing.T) {
	cfg := defaultConfig()
	cfg.Resolver.Timeout = 3 * time.Second
	cfg.Session.HardStopTimeout = 3 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("equal timeouts must validate: %v", err)
	}
}

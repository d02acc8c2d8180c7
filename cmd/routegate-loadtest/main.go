package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	routegate "github.com/vendalink/routegate"
	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
)

// stubProvider is an in-process auth backend: one signed-in manager whose
// membership lookups cost a configurable artificial latency.
type stubProvider struct {
	identity provider.Identity
	grants   map[role.Role]bool
	latency  time.Duration
	checks   atomic.Int64
}

func (p *stubProvider) GetCurrentSession(ctx context.Context) (*provider.AuthSession, error) {
	id := p.identity
	return &provider.AuthSession{
		Identity:  &id,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (p *stubProvider) SubscribeAuthStateChanges(handler func(provider.AuthEvent)) func() {
	return func() {}
}

func (p *stubProvider) CheckRoleMembership(ctx context.Context, identityID string, r role.Role) (bool, error) {
	p.checks.Add(1)
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return p.grants[r], nil
}

func (p *stubProvider) SignOut(ctx context.Context) error { return nil }

func main() {
	var (
		concurrency  = flag.Int("concurrency", 256, "number of concurrent workers")
		ops          = flag.Int("ops", 200000, "operations per phase (cached + fallback)")
		checkLatency = flag.Duration("check-latency", 500*time.Microsecond, "simulated provider membership check latency")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := &stubProvider{
		identity: provider.Identity{ID: "load-1", Email: "load@example.com"},
		grants:   map[role.Role]bool{role.Manager: true},
		latency:  *checkLatency,
	}

	engine, err := routegate.New().
		WithProvider(backend).
		WithRedis(client).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
		os.Exit(1)
	}

	// Wait for resolution to settle so the cached phase measures the hot
	// path, not the loading interstitial.
	deadline := time.Now().Add(5 * time.Second)
	for engine.Snapshot().Loading {
		if time.Now().After(deadline) {
			fmt.Fprintln(os.Stderr, "session never settled")
			os.Exit(1)
		}
		time.Sleep(5 * time.Millisecond)
	}
	fmt.Printf("session settled as %s\n", engine.Snapshot().Role)

	cachedPaths := []string{"/dashboards/sky", "/sales/sky/new", "/sales/internet/new", "/"}
	cachedStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Authorize(ctx, cachedPaths[r.Intn(len(cachedPaths))])
		return err
	})

	// Admin-only routes force the live fallback tier on every call.
	fallbackStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Authorize(ctx, "/admin/users")
		return err
	})

	fmt.Println("---- results ----")
	printStats("cached", cachedStats)
	printStats("fallback", fallbackStats)
	fmt.Printf("provider membership checks: %d\n", backend.checks.Load())
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

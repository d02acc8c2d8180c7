package role

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockChecker answers membership from a fixed grant map, with optional
// per-tier errors and an optional delay.
type mockChecker struct {
	grants map[Role]bool
	errs   map[Role]error
	delay  time.Duration
	calls  []Role
}

func (m *mockChecker) CheckRoleMembership(ctx context.Context, identityID string, r Role) (bool, error) {
	m.calls = append(m.calls, r)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err := m.errs[r]; err != nil {
		return false, err
	}
	return m.grants[r], nil
}

func TestResolveHighestTierWins(t *testing.T) {
	checker := &mockChecker{grants: map[Role]bool{Admin: true, Manager: true}}
	r := NewResolver(checker, time.Second)

	resolved, err := r.Resolve(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved != Admin {
		t.Fatalf("expected Admin, got %v", resolved)
	}
	// Admin answered true, so Manager must not have been probed.
	if len(checker.calls) != 1 || checker.calls[0] != Admin {
		t.Fatalf("unexpected probe sequence: %v", checker.calls)
	}
}

func TestResolveFallsThroughToUser(t *testing.T) {
	checker := &mockChecker{grants: map[Role]bool{}}
	r := NewResolver(checker, time.Second)

	resolved, err := r.Resolve(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved != User {
		t.Fatalf("expected User floor, got %v", resolved)
	}
	if len(checker.calls) != len(Descending) {
		t.Fatalf("expected %d probes, got %v", len(Descending), checker.calls)
	}
}

func TestResolveManagerTier(t *testing.T) {
	checker := &mockChecker{grants: map[Role]bool{Manager: true}}
	r := NewResolver(checker, time.Second)

	resolved, err := r.Resolve(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved != Manager {
		t.Fatalf("expected Manager, got %v", resolved)
	}
}

func TestResolveTimeout(t *testing.T) {
	checker := &mockChecker{delay: 500 * time.Millisecond}
	r := NewResolver(checker, 20*time.Millisecond)

	resolved, err := r.Resolve(context.Background(), "id-1")
	if !errors.Is(err, ErrResolutionTimeout) {
		t.Fatalf("expected ErrResolutionTimeout, got %v", err)
	}
	if resolved != Unknown {
		t.Fatalf("timed-out resolution must not report a role, got %v", resolved)
	}
}

func TestResolveCheckErrorAbortsWholeOperation(t *testing.T) {
	cause := errors.New("backend down")
	checker := &mockChecker{
		grants: map[Role]bool{Manager: true},
		errs:   map[Role]error{Admin: cause},
	}
	r := NewResolver(checker, time.Second)

	_, err := r.Resolve(context.Background(), "id-1")
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	// An errored higher tier must not silently settle on a lower one.
	if len(checker.calls) != 1 {
		t.Fatalf("expected probing to stop at the failed tier, got %v", checker.calls)
	}
}

func TestResolveEmptyIdentity(t *testing.T) {
	r := NewResolver(&mockChecker{}, time.Second)
	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
}

func TestResolveCallerContextCancellation(t *testing.T) {
	checker := &mockChecker{delay: time.Second}
	r := NewResolver(checker, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Resolve(ctx, "id-1")
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed on cancellation, got %v", err)
	}
}

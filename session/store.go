package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
)

// ErrSubscriptionFailed is returned by Initialize when the auth-state
// stream cannot be established. Fatal to bootstrap; the hard-stop timer is
// already armed when this is returned, so the session still exits loading.
var ErrSubscriptionFailed = errors.New("auth-state subscription failed")

// ErrClosed is returned by operations on a torn-down store.
var ErrClosed = errors.New("session store closed")

const (
	defaultHardStop    = 8 * time.Second
	defaultWatchBuffer = 4
)

// Config controls Store timing and sign-out behavior.
type Config struct {
	// HardStopTimeout bounds how long the session may stay in the loading
	// state regardless of upstream behavior. Zero means 8s.
	HardStopTimeout time.Duration
	// WatchBuffer sizes per-watcher snapshot channels. Zero means 4.
	WatchBuffer int
	// RedirectToLogin is invoked after every sign-out, even a remotely
	// failed one: local UI must never trap the user. May be nil.
	RedirectToLogin func()
}

// Store is the single owner of the process-wide Session. It is created in
// the loading/anonymous state, initialized exactly once, mutated only by
// auth-state events, resolver completions, the hard-stop timer, and
// SignOut, and torn down idempotently via Close.
type Store struct {
	cfg      Config
	source   Source
	resolver RoleResolver
	observer Observer

	mu          sync.Mutex
	initialized bool
	closed      bool
	loading     bool
	identity    *provider.Identity
	role        role.Role
	// epoch counts identity transitions. A resolution captured under an
	// older epoch must never commit (stale-result discard).
	epoch uint64

	unsubscribe func()
	hardStop    *time.Timer

	watchers  map[int]chan Snapshot
	nextWatch int
}

// NewStore wires a Store. Nothing happens until Initialize.
func NewStore(cfg Config, source Source, resolver RoleResolver, observer Observer) *Store {
	if cfg.HardStopTimeout <= 0 {
		cfg.HardStopTimeout = defaultHardStop
	}
	if cfg.WatchBuffer <= 0 {
		cfg.WatchBuffer = defaultWatchBuffer
	}
	if observer == nil {
		observer = NopObserver{}
	}

	return &Store{
		cfg:      cfg,
		source:   source,
		resolver: resolver,
		observer: observer,
		loading:  true,
		role:     role.Unknown,
		watchers: make(map[int]chan Snapshot),
	}
}

// Initialize arms the hard-stop timer, subscribes to the auth-state stream,
// and only then requests the current session snapshot — subscribing first
// closes the window where an event firing between snapshot and subscription
// would be lost. Idempotent: second and later calls are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.loading = true
	s.hardStop = time.AfterFunc(s.cfg.HardStopTimeout, s.fireHardStop)
	s.mu.Unlock()

	unsubscribe, err := s.source.SubscribeAuthStateChanges(s.onAuthEvent)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	sess, err := s.source.GetCurrentSession(ctx)
	if err != nil {
		// Snapshot fetch failure bootstraps as anonymous; a later
		// auth-state event can still bring a session in.
		s.apply(nil)
		return nil
	}
	s.apply(identityOf(sess))
	return nil
}

// Snapshot returns the current Session view.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Loading:  s.loading,
		Identity: s.identity,
		Role:     s.role,
	}
}

// Watch registers a snapshot watcher. Every committed state change is sent
// on the returned channel (dropped, not blocked on, when the watcher lags).
// The cancel func unregisters and closes the channel; safe to call twice.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, s.cfg.WatchBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) broadcastLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// SignOut calls the provider's sign-out, unconditionally resets the Session
// to its initial anonymous state, and redirects to the entry surface. The
// remote error, if any, is returned for surfacing (toast/log); it never
// prevents the local reset or the redirect.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	remoteErr := s.source.SignOut(ctx)

	s.mu.Lock()
	if !s.closed {
		prevID := ""
		if s.identity != nil {
			prevID = s.identity.ID
		}
		s.identity = nil
		s.role = role.Unknown
		s.loading = false
		s.epoch++
		s.broadcastLocked()
		s.mu.Unlock()
		if prevID != "" {
			s.observer.SignedOut(prevID)
		}
	} else {
		s.mu.Unlock()
	}

	if s.cfg.RedirectToLogin != nil {
		s.cfg.RedirectToLogin()
	}
	return remoteErr
}

// Close tears the store down: unsubscribes, stops the hard-stop timer, and
// bars every future commit, including in-flight resolutions. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	if s.hardStop != nil {
		s.hardStop.Stop()
		s.hardStop = nil
	}
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) onAuthEvent(event provider.AuthEvent) {
	s.apply(identityOf(event.Session))
}

// apply commits the next identity under the session invariants and, when an
// identity is present, kicks off role resolution for it.
func (s *Store) apply(next *provider.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	prev := s.identity
	s.identity = next

	var (
		signedIn  bool
		signedOut bool
		changed   bool
		refreshed bool
	)

	switch {
	case next == nil:
		// Absent identity never keeps a concrete role.
		s.role = role.Unknown
		s.loading = false
		if prev != nil {
			signedOut = true
			s.epoch++
		}
	case prev == nil:
		signedIn = true
		s.epoch++
	case prev.ID != next.ID:
		// New identity: the cached role belongs to someone else.
		s.role = role.Unknown
		changed = true
		s.epoch++
	default:
		// Token refresh for the same identity keeps the resolved role.
		refreshed = true
	}

	// A plain refresh keeps the cached role and needs no new resolution,
	// unless the role never settled in the first place.
	needsResolve := next != nil && (signedIn || changed || refreshed && !s.role.Known())

	epoch := s.epoch
	prevCopy := prev
	s.broadcastLocked()
	s.mu.Unlock()

	switch {
	case signedIn:
		s.observer.SignedIn(*next)
	case signedOut:
		s.observer.SignedOut(prevCopy.ID)
	case changed:
		s.observer.IdentityChanged(*prevCopy, *next)
	case refreshed:
		s.observer.TokenRefreshed(next.ID)
	}

	if needsResolve {
		go s.resolve(*next, epoch)
	}
}

// resolve runs one resolution attempt for identity and commits the outcome
// if the identity epoch is still current when it settles. Resolution
// failure applies the fallback policy: keep the previously cached role, or
// default to the least-privileged concrete role when none exists.
func (s *Store) resolve(identity provider.Identity, epoch uint64) {
	resolved, err := s.resolver.Resolve(context.Background(), identity.ID)

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		s.observer.ResolutionDiscarded(identity.ID)
		return
	}

	var fallback role.Role
	if err != nil {
		fallback = s.role
		if !fallback.Known() {
			fallback = role.User
		}
		s.role = fallback
	} else {
		s.role = resolved
	}
	s.loading = false
	s.broadcastLocked()
	s.mu.Unlock()

	if err != nil {
		s.observer.RoleFallbackApplied(identity.ID, fallback, err)
		return
	}
	s.observer.RoleResolved(identity.ID, resolved)
}

// fireHardStop forces the session out of the loading state and, when an
// identity exists with no settled role, defaults it to the least-privileged
// concrete role. It does not cancel the in-flight resolution: a late result
// under the current epoch still commits.
func (s *Store) fireHardStop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	fired := false
	defaulted := false
	if s.loading {
		s.loading = false
		fired = true
	}
	if s.identity != nil && !s.role.Known() {
		s.role = role.User
		fired = true
		defaulted = true
	}
	if fired {
		s.broadcastLocked()
	}
	s.mu.Unlock()

	if fired {
		s.observer.HardStopFired(defaulted)
	}
}

func identityOf(sess *provider.AuthSession) *provider.Identity {
	if sess == nil || sess.Identity == nil {
		return nil
	}
	// Copy: the Session must not alias provider-owned memory.
	identity := *sess.Identity
	return &identity
}

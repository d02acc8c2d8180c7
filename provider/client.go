package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vendalink/routegate/role"
)

const (
	sessionPath   = "/auth/v1/session"
	logoutPath    = "/auth/v1/logout"
	hasRolePath   = "/rest/v1/rpc/has_role"
	bootstrapPath = "/functions/v1/bootstrap-admin"

	defaultRefreshLead = 30 * time.Second
	subscriberBuffer   = 16
)

// Config configures a Client.
//
// Config instances are intended to be populated once and passed to NewClient;
// they are not read again afterwards.
type Config struct {
	// BaseURL is the backend origin, without trailing slash.
	BaseURL string
	// APIKey is sent as the apikey header on every request.
	APIKey string
	// HTTPClient overrides the transport; nil uses a 10s-timeout default.
	HTTPClient *http.Client
	// RefreshLead is how long before token expiry the client re-fetches the
	// session and emits a token-refresh event. Zero means 30s.
	RefreshLead time.Duration
	// DisableAutoRefresh turns the refresh loop off (tests drive events
	// manually).
	DisableAutoRefresh bool
}

// Client talks to the hosted identity backend and fans auth-state changes
// out to subscribers. It satisfies Interface.
type Client struct {
	cfg  Config
	http *http.Client

	mu      sync.Mutex
	current *AuthSession
	subs    map[int]*subscriber
	nextSub int
	timer   *time.Timer
	closed  bool

	dropped atomic.Uint64
}

type subscriber struct {
	ch   chan AuthEvent
	done chan struct{}
}

// NewClient creates a Client. It performs no I/O; the first session fetch
// happens on GetCurrentSession.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider: BaseURL required")
	}
	if cfg.RefreshLead <= 0 {
		cfg.RefreshLead = defaultRefreshLead
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		cfg:  cfg,
		http: httpClient,
		subs: make(map[int]*subscriber),
	}, nil
}

// Close stops the refresh loop and terminates all subscriptions. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	subs := c.subs
	c.subs = map[int]*subscriber{}
	c.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
}

// DroppedEvents reports auth events discarded due to subscriber
// backpressure.
func (c *Client) DroppedEvents() uint64 {
	return c.dropped.Load()
}

// GetCurrentSession fetches the session snapshot from the backend. A 204 or
// 401 answer means no session; the installed session (and refresh schedule)
// is updated to match whatever the backend returned.
func (c *Client) GetCurrentSession(ctx context.Context) (*AuthSession, error) {
	status, body, err := c.do(ctx, http.MethodGet, sessionPath, nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusNoContent, http.StatusUnauthorized:
		c.store(nil)
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("%w: session fetch status %d", ErrUnavailable, status)
	}

	var payload struct {
		AccessToken string   `json:"access_token"`
		ExpiresAt   int64    `json:"expires_at"`
		Roles       []string `json:"roles"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: session decode: %v", ErrUnavailable, err)
	}
	if payload.AccessToken == "" {
		c.store(nil)
		return nil, nil
	}

	sess, err := sessionFromToken(payload.AccessToken, payload.ExpiresAt, payload.Roles)
	if err != nil {
		return nil, err
	}
	c.store(sess)
	return sess, nil
}

// InstallSession installs an access token obtained out of band (the login
// surface is external to this core) and emits a signed-in event.
func (c *Client) InstallSession(accessToken string) (*AuthSession, error) {
	sess, err := sessionFromToken(accessToken, 0, nil)
	if err != nil {
		return nil, err
	}

	c.store(sess)
	c.emit(AuthEvent{Type: EventSignedIn, Session: sess})
	return sess, nil
}

// SubscribeAuthStateChanges registers handler for auth events. When a
// session is already installed the handler first receives an
// initial-session event, then subsequent changes in order. The returned
// handle unsubscribes and is safe to call more than once.
func (c *Client) SubscribeAuthStateChanges(handler func(AuthEvent)) func() {
	sub := &subscriber{
		ch:   make(chan AuthEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	if c.current != nil {
		sub.ch <- AuthEvent{Type: EventInitialSession, Session: c.current}
	}
	c.mu.Unlock()

	go func() {
		for {
			select {
			case event := <-sub.ch:
				handler(event)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(sub.done)
		})
	}
}

// CheckRoleMembership queries the role oracle. The request/response contract
// is the backend's has_role RPC: a JSON boolean body on 200.
func (c *Client) CheckRoleMembership(ctx context.Context, identityID string, r role.Role) (bool, error) {
	if identityID == "" || !r.Known() {
		return false, fmt.Errorf("%w: invalid membership query", ErrUnavailable)
	}

	reqBody, err := json.Marshal(map[string]string{
		"_user_id": identityID,
		"_role":    r.String(),
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status, body, err := c.do(ctx, http.MethodPost, hasRolePath, reqBody)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("%w: has_role status %d", ErrUnavailable, status)
	}

	var granted bool
	if err := json.Unmarshal(body, &granted); err != nil {
		return false, fmt.Errorf("%w: has_role decode: %v", ErrUnavailable, err)
	}
	return granted, nil
}

// SignOut ends the remote session, then clears the installed session and
// emits a signed-out event regardless of the remote outcome. The remote
// error, if any, is returned.
func (c *Client) SignOut(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodPost, logoutPath, nil)

	c.store(nil)
	c.emit(AuthEvent{Type: EventSignedOut})

	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("%w: logout status %d", ErrUnavailable, status)
	}
	return nil
}

// BootstrapAdmin invokes the black-box provisioning RPC that grants the
// first admin. The caller must already be authenticated; token is the
// out-of-band bootstrap secret. On success the cached role for the caller is
// stale until the next resolution or gate fallback check.
func (c *Client) BootstrapAdmin(ctx context.Context, token string) (*BootstrapResult, error) {
	reqBody, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status, body, err := c.do(ctx, http.MethodPost, bootstrapPath, reqBody)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusConflict:
		return nil, ErrBootstrapDisabled
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrBootstrapForbidden
	default:
		return nil, fmt.Errorf("%w: bootstrap status %d", ErrUnavailable, status)
	}

	var payload struct {
		IdentityID string `json:"user_id"`
		Role       string `json:"role"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: bootstrap decode: %v", ErrUnavailable, err)
	}

	granted, _ := role.Parse(payload.Role)
	return &BootstrapResult{IdentityID: payload.IdentityID, Role: granted}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, ErrClientClosed
	}
	var bearer string
	if c.current != nil {
		bearer = c.current.AccessToken
	}
	c.mu.Unlock()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, data, nil
}

// store swaps the installed session and reschedules the refresh timer. It
// does not emit events; callers decide which event the swap represents.
func (c *Client) store(sess *AuthSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.current = sess
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if sess == nil || c.cfg.DisableAutoRefresh || sess.ExpiresAt.IsZero() {
		return
	}

	wait := time.Until(sess.ExpiresAt) - c.cfg.RefreshLead
	if wait < 0 {
		wait = 0
	}
	c.timer = time.AfterFunc(wait, c.refresh)
}

// refresh re-fetches the session near token expiry. Same identity emits a
// token-refresh event; a vanished session emits signed-out. Failures are
// silent here: the next navigation or the session store's own timeouts pick
// up the slack.
func (c *Client) refresh() {
	c.mu.Lock()
	if c.closed || c.current == nil {
		c.mu.Unlock()
		return
	}
	prev := c.current.Identity
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := c.GetCurrentSession(ctx)
	if err != nil {
		return
	}
	if sess == nil {
		c.emit(AuthEvent{Type: EventSignedOut})
		return
	}

	eventType := EventTokenRefreshed
	if prev == nil || sess.Identity == nil || prev.ID != sess.Identity.ID {
		eventType = EventSignedIn
	}
	c.emit(AuthEvent{Type: eventType, Session: sess})
}

func (c *Client) emit(event AuthEvent) {
	c.mu.Lock()
	subs := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		case <-sub.done:
		default:
			c.dropped.Add(1)
		}
	}
}

// sessionFromToken builds an AuthSession from a JWT access token. Claims are
// read unverified, exactly as the original in-browser client does: the token
// identifies the session but grants nothing — privileges always come from
// the oracle.
func sessionFromToken(accessToken string, expiresAt int64, rawRoles []string) (*AuthSession, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	email, _ := claims["email"].(string)

	expiry := time.Time{}
	if expiresAt > 0 {
		expiry = time.Unix(expiresAt, 0)
	} else if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}

	return &AuthSession{
		Identity:      &Identity{ID: subject, Email: email},
		AccessToken:   accessToken,
		ExpiresAt:     expiry,
		RawRoleClaims: rawRoles,
	}, nil
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vendalink/routegate/role"
)

func testToken(t *testing.T, subject, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:            srv.URL,
		APIKey:             "test-key",
		DisableAutoRefresh: true,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c, srv
}

func TestGetCurrentSessionParsesToken(t *testing.T) {
	token := testToken(t, "u-42", "rep@vendalink.test")
	var gotAPIKey, gotRequestID string

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sessionPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAPIKey = r.Header.Get("apikey")
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_at":   time.Now().Add(time.Hour).Unix(),
		})
	}))

	sess, err := c.GetCurrentSession(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentSession: %v", err)
	}
	if sess == nil || sess.Identity == nil {
		t.Fatal("expected a session with identity")
	}
	if sess.Identity.ID != "u-42" || sess.Identity.Email != "rep@vendalink.test" {
		t.Fatalf("unexpected identity %+v", sess.Identity)
	}
	if sess.ExpiresAt.IsZero() {
		t.Fatal("expected token expiry to be set")
	}
	if gotAPIKey != "test-key" {
		t.Fatalf("apikey header = %q", gotAPIKey)
	}
	if gotRequestID == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestGetCurrentSessionNoSession(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusUnauthorized} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		sess, err := c.GetCurrentSession(context.Background())
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", status, err)
		}
		if sess != nil {
			t.Fatalf("status %d: expected nil session", status)
		}
	}
}

func TestGetCurrentSessionBackendError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := c.GetCurrentSession(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestInstallSessionEmitsSignedIn(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	events := make(chan AuthEvent, 4)
	unsub := c.SubscribeAuthStateChanges(func(e AuthEvent) { events <- e })
	defer unsub()

	sess, err := c.InstallSession(testToken(t, "u-1", ""))
	if err != nil {
		t.Fatalf("InstallSession: %v", err)
	}
	if sess.Identity.ID != "u-1" {
		t.Fatalf("identity = %q", sess.Identity.ID)
	}

	select {
	case e := <-events:
		if e.Type != EventSignedIn || e.Session == nil || e.Session.Identity.ID != "u-1" {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signed-in event")
	}
}

func TestInstallSessionRejectsBadToken(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := c.InstallSession("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSubscribeDeliversInitialSession(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := c.InstallSession(testToken(t, "u-1", "")); err != nil {
		t.Fatalf("InstallSession: %v", err)
	}

	events := make(chan AuthEvent, 4)
	unsub := c.SubscribeAuthStateChanges(func(e AuthEvent) { events <- e })
	defer unsub()

	select {
	case e := <-events:
		if e.Type != EventInitialSession {
			t.Fatalf("expected initial-session event, got %v", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial-session event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	var mu sync.Mutex
	var count int
	unsub := c.SubscribeAuthStateChanges(func(AuthEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsub()
	unsub() // safe to call twice

	c.emit(AuthEvent{Type: EventSignedOut})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("unsubscribed handler received %d events", count)
	}
}

func TestCheckRoleMembershipContract(t *testing.T) {
	var gotBody map[string]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != hasRolePath || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("true"))
	}))

	granted, err := c.CheckRoleMembership(context.Background(), "u-1", role.Manager)
	if err != nil {
		t.Fatalf("CheckRoleMembership: %v", err)
	}
	if !granted {
		t.Fatal("expected grant")
	}
	if gotBody["_user_id"] != "u-1" || gotBody["_role"] != "manager" {
		t.Fatalf("unexpected RPC body %v", gotBody)
	}
}

func TestCheckRoleMembershipRejectsInvalidQuery(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := c.CheckRoleMembership(context.Background(), "", role.Admin); err == nil {
		t.Fatal("expected error for empty identity")
	}
	if _, err := c.CheckRoleMembership(context.Background(), "u-1", role.Unknown); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestSignOutClearsSessionEvenOnRemoteFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if _, err := c.InstallSession(testToken(t, "u-1", "")); err != nil {
		t.Fatalf("InstallSession: %v", err)
	}

	events := make(chan AuthEvent, 4)
	unsub := c.SubscribeAuthStateChanges(func(e AuthEvent) { events <- e })
	defer unsub()
	// Drain the initial-session event.
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial-session event")
	}

	err := c.SignOut(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected remote failure, got %v", err)
	}

	select {
	case e := <-events:
		if e.Type != EventSignedOut {
			t.Fatalf("expected signed-out event, got %v", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signed-out event")
	}

	c.mu.Lock()
	cleared := c.current == nil
	c.mu.Unlock()
	if !cleared {
		t.Fatal("local session must clear even when remote sign-out fails")
	}
}

func TestBootstrapAdminStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusConflict, ErrBootstrapDisabled},
		{http.StatusUnauthorized, ErrBootstrapForbidden},
		{http.StatusForbidden, ErrBootstrapForbidden},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := c.BootstrapAdmin(context.Background(), "secret")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestBootstrapAdminSuccess(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != bootstrapPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "secret" {
			t.Errorf("bootstrap token = %q", body["token"])
		}
		json.NewEncoder(w).Encode(map[string]string{"user_id": "u-1", "role": "admin"})
	}))

	res, err := c.BootstrapAdmin(context.Background(), "secret")
	if err != nil {
		t.Fatalf("BootstrapAdmin: %v", err)
	}
	if res.IdentityID != "u-1" || res.Role != role.Admin {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClosedClientRefusesRequests(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	c.Close()
	c.Close() // idempotent

	if _, err := c.GetCurrentSession(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

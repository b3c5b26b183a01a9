package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionCreateValidRevoke(t *testing.T) {
	store := newSessionStore(time.Hour)

	token, err := store.create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}
	if !store.valid(token) {
		t.Errorf("fresh token should be valid")
	}
	if store.valid("") {
		t.Errorf("empty token must never validate")
	}
	if store.valid("deadbeef") {
		t.Errorf("unknown token must never validate")
	}

	store.revoke(token)
	if store.valid(token) {
		t.Errorf("revoked token still valid")
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	store := newSessionStore(time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		token, err := store.create()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token on draw %d", i)
		}
		seen[token] = true
	}
}

func TestSessionExpiresWithTTL(t *testing.T) {
	store := newSessionStore(10 * time.Millisecond)

	token, err := store.create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if store.valid(token) {
		t.Errorf("token should have expired")
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	store := newSessionStore(time.Hour)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	store.setSessionCookie(rec, req, "tok123")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookie count = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != sessionCookieName || c.Value != "tok123" {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly {
		t.Errorf("cookie must be HttpOnly")
	}
	if c.Secure {
		t.Errorf("plaintext request must not set a Secure cookie")
	}
	if c.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", c.MaxAge)
	}

	// The handler reads it back off a request.
	followup := httptest.NewRequest(http.MethodGet, "/admin", nil)
	followup.AddCookie(c)
	if got := sessionToken(followup); got != "tok123" {
		t.Errorf("sessionToken = %q, want tok123", got)
	}
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	clearSessionCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookie count = %d, want 1", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative to expire the cookie", cookies[0].MaxAge)
	}
}

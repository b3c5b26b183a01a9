package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"cassa/internal/cache"
)

const sessionCookieName = "cassa_session"

// sessionStore hands out opaque admin session tokens. Tokens live in an
// LRU cache so they expire on their own and a restart logs everyone out,
// which is acceptable for a single shared admin credential.
type sessionStore struct {
	tokens *cache.LRUCache[time.Time]
	ttl    time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		tokens: cache.NewLRUCache[time.Time](64, ttl),
		ttl:    ttl,
	}
}

// create mints a new session token.
func (s *sessionStore) create() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(b)
	s.tokens.Set(token, time.Now())
	return token, nil
}

// valid reports whether token belongs to a live session.
func (s *sessionStore) valid(token string) bool {
	if token == "" {
		return false
	}
	_, ok := s.tokens.Get(token)
	return ok
}

// revoke ends the session for token.
func (s *sessionStore) revoke(token string) {
	s.tokens.Delete(token)
}

// setSessionCookie attaches the session cookie to the response.
func (s *sessionStore) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie on the client.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken pulls the session token from the request cookie.
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

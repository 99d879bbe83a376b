package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zonewatch/internal/clock"
)

// session is one issued bearer credential.
type session struct {
	userID    string
	expiresAt time.Time
}

// SessionManager issues and resolves short-lived bearer sessions.
// Params: TTL policy and clock for expiry checks.
// Returns: in-memory session registry safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]session
	ttl      time.Duration
	clk      clock.Clock
}

// NewSessionManager creates session registry.
// Params: session lifetime and clock (nil clock uses real time).
// Returns: initialized manager.
func NewSessionManager(ttl time.Duration, clk clock.Clock) *SessionManager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		sessions: make(map[string]session),
		ttl:      ttl,
		clk:      clk,
	}
}

// Create issues a new session token for one user.
// Params: user id the session authenticates as.
// Returns: opaque bearer token valid for the configured TTL.
func (m *SessionManager) Create(userID string) string {
	token := uuid.NewString()
	now := m.clk.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(now)
	m.sessions[token] = session{userID: userID, expiresAt: now.Add(m.ttl)}
	return token
}

// Resolve maps a bearer token to its user id.
// Params: opaque token value.
// Returns: user id and true, or empty and false for unknown/expired tokens.
func (m *SessionManager) Resolve(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	now := m.clk.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[token]
	if !ok {
		return "", false
	}
	if now.After(entry.expiresAt) {
		delete(m.sessions, token)
		return "", false
	}
	return entry.userID, true
}

// Revoke drops one session.
// Params: opaque token value.
// Returns: nothing; unknown tokens are a no-op.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, strings.TrimSpace(token))
}

// purgeLocked removes expired sessions; caller must hold the lock.
func (m *SessionManager) purgeLocked(now time.Time) {
	for token, entry := range m.sessions {
		if now.After(entry.expiresAt) {
			delete(m.sessions, token)
		}
	}
}

// Authenticator resolves bearer tokens to user ids.
// Params: static service-account table and session registry.
// Returns: combined credential lookup for the HTTP middleware.
type Authenticator struct {
	static   map[string]string
	sessions *SessionManager
}

// NewAuthenticator creates combined token resolver.
// Params: static token-to-user table and session manager.
// Returns: initialized authenticator.
func NewAuthenticator(static map[string]string, sessions *SessionManager) *Authenticator {
	if static == nil {
		static = map[string]string{}
	}
	return &Authenticator{static: static, sessions: sessions}
}

// Authenticate maps one bearer token to a user id.
// Params: raw token from the Authorization header.
// Returns: user id and true when the token is a known static credential or
// a live session; static credentials never expire.
func (a *Authenticator) Authenticate(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if userID, ok := a.static[token]; ok {
		return userID, true
	}
	if a.sessions != nil {
		return a.sessions.Resolve(token)
	}
	return "", false
}

// StartSession exchanges a static credential for a TTL-bound session token.
// Params: static token value.
// Returns: session token and true, or empty and false for unknown credentials.
func (a *Authenticator) StartSession(staticToken string) (string, bool) {
	userID, ok := a.static[strings.TrimSpace(staticToken)]
	if !ok || a.sessions == nil {
		return "", false
	}
	return a.sessions.Create(userID), true
}

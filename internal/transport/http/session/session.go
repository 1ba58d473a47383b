package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName carries the signed session payload. One cookie for everything:
// the session id plus ancillary scratch state (bound email, flash messages).
const CookieName = "__site_session"

// Records is the server-side session lifecycle the cookie layer sits on.
type Records interface {
	Create(ctx context.Context, userID string) (*domain.Session, error)
	GetUser(ctx context.Context, sessionID string) (*domain.User, error)
	Delete(ctx context.Context, sessionID string) error
	Expiry() time.Duration
}

// payload is the cookie's decoded content. It is signed, not encrypted:
// tamper-evident and opaque enough, but nothing secret goes in here.
type payload struct {
	SessionID string            `json:"sessionId,omitempty"`
	Email     string            `json:"email,omitempty"` // magic-link binding
	Flash     map[string]string `json:"flash,omitempty"`
}

func (p payload) empty() bool {
	return p.SessionID == "" && p.Email == "" && len(p.Flash) == 0
}

type claims struct {
	payload
	jwt.RegisteredClaims
}

// Manager decodes and signs session cookies. Construct one at startup.
type Manager struct {
	secret  []byte
	records Records
	secure  bool
}

func NewManager(secret string, records Records, secure bool) *Manager {
	return &Manager{secret: []byte(secret), records: records, secure: secure}
}

// FromRequest decodes the request's session cookie into a request-scoped
// handle. A missing, malformed, or tampered cookie silently becomes a fresh
// empty session. The serialized form at load time is kept so Commit can tell
// whether anything actually changed.
func (m *Manager) FromRequest(r *http.Request) *ClientSession {
	cs := &ClientSession{m: m}
	if c, err := r.Cookie(CookieName); err == nil {
		if p, ok := m.decode(c.Value); ok {
			cs.payload = p
		}
	}
	cs.initialValue = serialize(cs.payload)
	return cs
}

// SessionID extracts the session id from the request cookie without touching
// the store. Used by the rate limiter as a cache key.
func (m *Manager) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	p, ok := m.decode(c.Value)
	if !ok || p.SessionID == "" {
		return "", false
	}
	return p.SessionID, true
}

// LookupEmail resolves a session id to its owner's email, or "" when the
// session is gone. This hits the store; callers should memoize.
func (m *Manager) LookupEmail(ctx context.Context, sessionID string) (string, error) {
	u, err := m.records.GetUser(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.Email, nil
}

func (m *Manager) decode(token string) (payload, bool) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return payload{}, false
	}
	return c.payload, true
}

func (m *Manager) sign(p payload) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims{payload: p}).SignedString(m.secret)
}

func serialize(p payload) string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// ClientSession is the request-scoped handle over the decoded cookie. It is
// not safe for concurrent use; each request gets its own.
type ClientSession struct {
	m            *Manager
	payload      payload
	initialValue string
}

// GetUser resolves the signed-in user, if any. Store failures are logged and
// degrade to anonymous — this never fails a request. A dangling session id
// (record expired or deleted server-side) is cleared from the payload so the
// next Commit drops it from the cookie too.
func (cs *ClientSession) GetUser(ctx context.Context) *domain.User {
	if cs.payload.SessionID == "" {
		return nil
	}
	u, err := cs.m.records.GetUser(ctx, cs.payload.SessionID)
	if err != nil {
		slog.Warn("session user lookup failed", "err", err)
		return nil
	}
	if u == nil {
		cs.payload.SessionID = ""
		return nil
	}
	return u
}

// SignIn creates a fresh session record for the user and stores its id in
// the payload. The bound email has served its purpose by now and is dropped.
func (cs *ClientSession) SignIn(ctx context.Context, u *domain.User) error {
	sess, err := cs.m.records.Create(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	cs.payload.SessionID = sess.SessionID
	cs.payload.Email = ""
	return nil
}

// SignOut clears the payload and deletes the session record in the
// background. Record deletion failures are logged, never surfaced — from the
// client's point of view sign-out always succeeds.
func (cs *ClientSession) SignOut() {
	sessionID := cs.payload.SessionID
	cs.payload = payload{}
	if sessionID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cs.m.records.Delete(ctx, sessionID); err != nil {
			slog.Warn("failed to delete session on sign-out", "session_id", sessionID, "err", err)
		}
	}()
}

// BindEmail records which address a magic link was requested for, so the
// link can only be consumed from this session.
func (cs *ClientSession) BindEmail(email string) { cs.payload.Email = email }

// BoundEmail returns the address BindEmail stored, or "".
func (cs *ClientSession) BoundEmail() string { return cs.payload.Email }

// SetFlash stores a one-shot message for the next page load.
func (cs *ClientSession) SetFlash(key, value string) {
	if cs.payload.Flash == nil {
		cs.payload.Flash = map[string]string{}
	}
	cs.payload.Flash[key] = value
}

// Flash returns and consumes a one-shot message. Consumption mutates the
// payload, so a following Commit emits the cookie without it.
func (cs *ClientSession) Flash(key string) string {
	v, ok := cs.payload.Flash[key]
	if !ok {
		return ""
	}
	delete(cs.payload.Flash, key)
	if len(cs.payload.Flash) == 0 {
		cs.payload.Flash = nil
	}
	return v
}

// Commit re-serializes the session and returns a Set-Cookie value only when
// the content differs from what the request arrived with. An unchanged
// session returns (nil, false) and must not emit any Set-Cookie header.
func (cs *ClientSession) Commit() (*http.Cookie, bool) {
	current := serialize(cs.payload)
	if current == cs.initialValue {
		return nil, false
	}
	c := &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		MaxAge:   int(cs.m.records.Expiry().Seconds()),
		HttpOnly: true,
		Secure:   cs.m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cs.payload.empty() {
		// Nothing left to carry: tell the browser to drop the cookie
		// instead of storing an empty payload for another 30 days.
		c.MaxAge = -1
	} else {
		token, err := cs.m.sign(cs.payload)
		if err != nil {
			slog.Error("failed to sign session cookie", "err", err)
			return nil, false
		}
		c.Value = token
	}
	cs.initialValue = current
	return c, true
}

// Headers appends the Set-Cookie header to h (allocating one when nil) if
// Commit produced a new cookie, and returns h either way.
func (cs *ClientSession) Headers(h http.Header) http.Header {
	if h == nil {
		h = http.Header{}
	}
	if c, ok := cs.Commit(); ok {
		h.Add("Set-Cookie", c.String())
	}
	return h
}

// Save writes the Set-Cookie header on the response if anything changed.
func (cs *ClientSession) Save(w http.ResponseWriter) {
	if c, ok := cs.Commit(); ok {
		http.SetCookie(w, c)
	}
}

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-site-api/internal/pkg/cache"
	"golang.org/x/time/rate"
)

// Request tiers, strictest first. Classification is an ordered list of
// method + path-substring predicates; first match wins.
const (
	tierStrongest = "strongest"
	tierStrong    = "strong"
	tierGeneral   = "general"
)

// Mutations to these paths get the strongest tier.
var sensitiveWritePaths = []string{
	"/login",
	"/signup",
	"/verify",
	"/reset-password",
	"/change-password",
	"/admin",
	"/save",
	"/webauthn",
}

// Reads of these paths carry credentials in the query string and get the
// strongest tier despite being GETs.
var sensitiveReadPaths = []string{
	"/magic",
	"/verify",
	"/signup",
	"/reset-password",
	"/oauth",
}

// IdentityResolver turns a request into the email behind its session, if
// any. The session cookie manager implements it.
type IdentityResolver interface {
	SessionID(r *http.Request) (string, bool)
	LookupEmail(ctx context.Context, sessionID string) (string, error)
}

// RateLimitOptions configures the tiered limiter. Limits are requests per
// Window. Multiplier scales every tier; non-production runs pass a large
// value so the code path is exercised without ever rejecting.
type RateLimitOptions struct {
	Strongest  int
	Strong     int
	General    int
	Window     time.Duration
	Multiplier float64

	// OperatorEmail gets a dedicated limiter at 10x the tier limit instead
	// of an immediate rejection.
	OperatorEmail string
	Resolver      IdentityResolver
	// IdentityCache memoizes sessionID -> email so the boost path does not
	// cost a store round-trip per request. Inject a fresh one per test run.
	IdentityCache *cache.Cache
}

// RateLimiter enforces per-client request throttling in three tiers.
type RateLimiter struct {
	opts      RateLimitOptions
	strongest *keyedLimiters
	strong    *keyedLimiters
	general   *keyedLimiters
	boosted   map[string]*keyedLimiters // tier -> operator limiter set
}

// NewRateLimiter builds the tiered limiter. Zero limits get production
// defaults; a zero multiplier means 1 (enforce as configured).
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Strongest == 0 {
		opts.Strongest = 10
	}
	if opts.Strong == 0 {
		opts.Strong = 100
	}
	if opts.General == 0 {
		opts.General = 1000
	}
	if opts.Window == 0 {
		opts.Window = time.Minute
	}
	if opts.Multiplier == 0 {
		opts.Multiplier = 1
	}
	if opts.IdentityCache == nil {
		opts.IdentityCache = cache.New(time.Minute, 10000)
	}
	scaled := func(n int) int { return int(float64(n) * opts.Multiplier) }
	const operatorBoost = 10
	return &RateLimiter{
		opts:      opts,
		strongest: newKeyedLimiters(scaled(opts.Strongest), opts.Window),
		strong:    newKeyedLimiters(scaled(opts.Strong), opts.Window),
		general:   newKeyedLimiters(scaled(opts.General), opts.Window),
		boosted: map[string]*keyedLimiters{
			tierStrongest: newKeyedLimiters(scaled(opts.Strongest*operatorBoost), opts.Window),
			tierStrong:    newKeyedLimiters(scaled(opts.Strong*operatorBoost), opts.Window),
			tierGeneral:   newKeyedLimiters(scaled(opts.General*operatorBoost), opts.Window),
		},
	}
}

// Handler is the middleware. Every response carries RateLimit-* headers;
// rejections answer 429 with a tier-specific message.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier := classify(r.Method, r.URL.Path)
		set := rl.tierSet(tier)
		key := clientIP(r)

		allowed := set.allow(key)
		rl.setHeaders(w, set, key)
		if !allowed {
			// Before rejecting, see if this is the operator: they get a
			// second chance against a 10x limiter keyed by their identity.
			if email := rl.resolveEmail(r); email != "" && email == rl.opts.OperatorEmail {
				boost := rl.boosted[tier]
				if boost.allow(email) {
					// The headers written above describe the exhausted
					// base bucket; replace them with the one that
					// actually admitted the request.
					rl.setHeaders(w, boost, email)
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusTooManyRequests,
				fmt.Sprintf("too many requests (%s tier), slow down", tier))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) tierSet(tier string) *keyedLimiters {
	switch tier {
	case tierStrongest:
		return rl.strongest
	case tierStrong:
		return rl.strong
	default:
		return rl.general
	}
}

func (rl *RateLimiter) setHeaders(w http.ResponseWriter, set *keyedLimiters, key string) {
	w.Header().Set("RateLimit-Limit", fmt.Sprintf("%d", set.limit))
	w.Header().Set("RateLimit-Remaining", fmt.Sprintf("%d", set.remaining(key)))
	w.Header().Set("RateLimit-Reset", fmt.Sprintf("%d", int(rl.opts.Window.Seconds())))
}

// resolveEmail maps the request's session to an email via the identity
// cache. Resolution failures degrade to "" — no privileged identity, the
// stricter limit stands. Never fails open.
func (rl *RateLimiter) resolveEmail(r *http.Request) string {
	if rl.opts.Resolver == nil {
		return ""
	}
	sessionID, ok := rl.opts.Resolver.SessionID(r)
	if !ok {
		return ""
	}
	if email, ok := rl.opts.IdentityCache.Get(sessionID); ok {
		return email
	}
	email, err := rl.opts.Resolver.LookupEmail(r.Context(), sessionID)
	if err != nil {
		slog.Warn("rate limiter identity resolution failed", "err", err)
		email = ""
	}
	// Negative results are cached too; a miss always retries the store
	// after the TTL.
	rl.opts.IdentityCache.Set(sessionID, email)
	return email
}

func classify(method, path string) string {
	if method == http.MethodGet || method == http.MethodHead {
		if matchesAny(path, sensitiveReadPaths) {
			return tierStrongest
		}
		return tierGeneral
	}
	if matchesAny(path, sensitiveWritePaths) {
		return tierStrongest
	}
	return tierStrong
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// clientIP prefers the infrastructure-injected client address over anything
// the client can forge, then falls back through proxy headers to the socket.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("Fly-Client-Ip"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// keyedLimiters is a set of token-bucket limiters sharing one rate, one per
// key, with automatic stale-entry cleanup.
type keyedLimiters struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	r        rate.Limit
	limit    int
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newKeyedLimiters allows n requests per window per key, with bursts up to
// the full window budget.
func newKeyedLimiters(n int, window time.Duration) *keyedLimiters {
	kl := &keyedLimiters{
		limiters: make(map[string]*keyedLimiter),
		r:        rate.Limit(float64(n) / window.Seconds()),
		limit:    n,
	}
	go kl.cleanup()
	return kl
}

func (kl *keyedLimiters) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	if v, ok := kl.limiters[key]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	l := rate.NewLimiter(kl.r, kl.limit)
	kl.limiters[key] = &keyedLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

func (kl *keyedLimiters) allow(key string) bool {
	return kl.get(key).Allow()
}

func (kl *keyedLimiters) remaining(key string) int {
	if n := int(kl.get(key).Tokens()); n > 0 {
		return n
	}
	return 0
}

// cleanup removes stale entries every 5 minutes.
func (kl *keyedLimiters) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		kl.mu.Lock()
		for key, v := range kl.limiters {
			if time.Since(v.lastSeen) > 10*time.Minute {
				delete(kl.limiters, key)
			}
		}
		kl.mu.Unlock()
	}
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-site-api/internal/application/call"
	"github.com/go-site-api/internal/application/magiclink"
	sessionapp "github.com/go-site-api/internal/application/session"
	"github.com/go-site-api/internal/application/user"
	"github.com/go-site-api/internal/application/verification"
	"github.com/go-site-api/internal/config"
	"github.com/go-site-api/internal/domain"
	"github.com/go-site-api/internal/pkg/cache"
	"github.com/go-site-api/internal/transport/http/handler"
	appmiddleware "github.com/go-site-api/internal/transport/http/middleware"
	websession "github.com/go-site-api/internal/transport/http/session"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	sessionSvc := sessionapp.NewService(deps.SessionRepo, deps.UserRepo,
		time.Duration(cfg.SessionExpiryDays)*24*time.Hour)
	sessions := websession.NewManager(cfg.SessionSecret, sessionSvc, cfg.Production())
	userSvc := user.NewService(deps.UserRepo, deps.SessionRepo, cfg.OperatorEmail)
	verificationSvc := verification.NewService(deps.VerificationRepo, cfg.DomainURL)
	magicLinks := magiclink.NewIssuer(deps.Cipher)
	callSvc := call.NewService(deps.RecordingStore, deps.CallRepo)
	replayer := appmiddleware.NewReplayer(cfg.FlyRegion, cfg.PrimaryRegion)

	// Outside production (and in end-to-end runs) the limits are scaled way
	// up: the code path still runs, enforcement effectively doesn't.
	multiplier := 1.0
	if !cfg.Production() {
		multiplier = 10000
	}
	rateLimiter := appmiddleware.NewRateLimiter(appmiddleware.RateLimitOptions{
		Strongest:     10,
		Strong:        100,
		General:       1000,
		Window:        time.Minute,
		Multiplier:    multiplier,
		OperatorEmail: cfg.OperatorEmail,
		Resolver:      sessions,
		IdentityCache: cache.New(time.Minute, 10000),
	})
	r.Use(rateLimiter.Handler)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(sessions, magicLinks, verificationSvc, userSvc,
		deps.Mailer, deps.SMSSender, replayer, cfg.DomainURL)
	callH := handler.NewCallHandler(callSvc)
	userH := handler.NewUserHandler(userSvc)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/healthcheck", healthH.Ping)
	r.Post("/login", authH.Login)
	r.Get(magiclink.LinkPath, authH.Magic)
	r.Get(verification.VerifyPath, authH.Verify)
	r.Post(verification.VerifyPath, authH.Verify)
	r.Post("/logout", authH.Logout)

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.RequireUser(sessions))

		r.Get("/me", authH.Me)
		r.Post("/confirm-phone", authH.ConfirmPhone)

		r.Post("/calls", callH.Submit)
		r.Get("/calls", callH.List)
		r.Get("/calls/{id}", callH.Get)
		r.Get("/calls/{id}/audio", callH.Audio)
		r.Delete("/calls/{id}", callH.Delete)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Get("/admin/users", userH.List)
			r.Delete("/admin/users/{id}", userH.Delete)
		})
	})

	return r
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-api-assets/internal/application/asset"
	"github.com/go-api-assets/internal/application/auth"
	"github.com/go-api-assets/internal/application/ratelimit"
	"github.com/go-api-assets/internal/application/requirement"
	"github.com/go-api-assets/internal/application/session"
	"github.com/go-api-assets/internal/config"
	"github.com/go-api-assets/internal/domain"
	jwtinfra "github.com/go-api-assets/internal/infrastructure/jwt"
	"github.com/go-api-assets/internal/transport/http/handler"
	appmiddleware "github.com/go-api-assets/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AssetRepo     AssetRepository
	UserRepo      UserRepository
	Cache         Cache
	Mailer        Mailer
	AccessTokens  *jwtinfra.Provider
	RefreshTokens *jwtinfra.Provider
	// Pingers are checked by /health-check/ready, keyed by dependency name.
	Pingers map[string]handler.Pinger
	// Now overrides the clock of every service. Nil means time.Now.
	Now func() time.Time
}

// NewRouter builds and returns the application router. ctx bounds the
// background cleanup of the per-IP limiter.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	// 5 requests/second, burst of 10, on unauthenticated endpoints that send mail or check secrets.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, cfg.TrustProxyHeaders)

	limiter := ratelimit.New(deps.Cache, ratelimit.Options{
		MaxAttempts:   cfg.Rate.MaxAttempts,
		AttemptWindow: cfg.Rate.AttemptWindow,
		BlockDuration: cfg.Rate.BlockDuration,
	})
	caps := asset.DefaultCapabilities(cfg.Asset.EmailTTL)
	assetSvc := asset.NewService(asset.ServiceDeps{
		AssetRepo:    deps.AssetRepo,
		Mailer:       deps.Mailer,
		Guard:        limiter,
		Capabilities: caps,
		ExposeSecret: cfg.Asset.ExposeSecret,
		Now:          now,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		Cache:   deps.Cache,
		Access:  deps.AccessTokens,
		Refresh: deps.RefreshTokens,
		Now:     now,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Assets:       assetSvc,
		Requirements: requirement.New(caps.TaggedTypes()...),
		UserRepo:     deps.UserRepo,
		Sessions:     sessionSvc,
		Limiter:      limiter,
		Now:          now,
	})

	healthH := handler.NewHealthHandler(deps.Pingers)
	assetH := handler.NewAssetHandler(assetSvc)
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(authSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/assets", assetH.Create)
		r.With(sensitiveRL.Limit).Post("/assets/{submitId}/verify", assetH.Verify)
		r.Get("/assets/{claimId}", assetH.Get)

		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(sessionSvc))

			r.Post("/auth/logout", authH.Logout)
			r.Get("/users/me", userH.Me)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users/{id}", userH.Get)
			})
		})
	})

	return r
}

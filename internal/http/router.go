// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-cart-recovery/docs"
	"github.com/tbourn/go-cart-recovery/internal/config"
	"github.com/tbourn/go-cart-recovery/internal/domain"
	"github.com/tbourn/go-cart-recovery/internal/http/handlers"
	"github.com/tbourn/go-cart-recovery/internal/http/middleware"
	"github.com/tbourn/go-cart-recovery/internal/notify"
	"github.com/tbourn/go-cart-recovery/internal/repo"
	"github.com/tbourn/go-cart-recovery/internal/services"
)

// cartRepoShim adapts the repository free functions to the services.CartRepo
// interface expected by the CartService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type cartRepoShim struct{}

// FindOpenCart proxies repo.FindOpenCart.
func (cartRepoShim) FindOpenCart(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CartTracking, error) {
	return repo.FindOpenCart(ctx, db, sessionID)
}

// FindAnyCart proxies repo.FindAnyCart.
func (cartRepoShim) FindAnyCart(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CartTracking, error) {
	return repo.FindAnyCart(ctx, db, sessionID)
}

// GetCart proxies repo.GetCart.
func (cartRepoShim) GetCart(ctx context.Context, db *gorm.DB, id string) (*domain.CartTracking, error) {
	return repo.GetCart(ctx, db, id)
}

// CreateCart proxies repo.CreateCart.
func (cartRepoShim) CreateCart(ctx context.Context, db *gorm.DB, rec *domain.CartTracking) error {
	return repo.CreateCart(ctx, db, rec)
}

// UpdateCart proxies repo.UpdateCart.
func (cartRepoShim) UpdateCart(ctx context.Context, db *gorm.DB, rec *domain.CartTracking, replaceItems bool) error {
	return repo.UpdateCart(ctx, db, rec, replaceItems)
}

// DeleteCart proxies repo.DeleteCart.
func (cartRepoShim) DeleteCart(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCart(ctx, db, id)
}

// TouchActivity proxies repo.TouchActivity.
func (cartRepoShim) TouchActivity(ctx context.Context, db *gorm.DB, id string, at time.Time, notes string) error {
	return repo.TouchActivity(ctx, db, id, at, notes)
}

// MarkRecovered proxies repo.MarkRecovered.
func (cartRepoShim) MarkRecovered(ctx context.Context, db *gorm.DB, id, notes string) error {
	return repo.MarkRecovered(ctx, db, id, notes)
}

// CountCarts proxies repo.CountCarts (pagination support).
func (cartRepoShim) CountCarts(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountCarts(ctx, db, status)
}

// ListCartsPage proxies repo.ListCartsPage (pagination support).
func (cartRepoShim) ListCartsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.CartTracking, error) {
	return repo.ListCartsPage(ctx, db, status, offset, limit)
}

// sweepRepoShim adapts the repository free functions to services.SweepRepo.
type sweepRepoShim struct{}

func (sweepRepoShim) ListSweepCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.CartTracking, error) {
	return repo.ListSweepCandidates(ctx, db, cutoff, limit)
}

func (sweepRepoShim) CountSweepCandidates(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return repo.CountSweepCandidates(ctx, db, cutoff)
}

func (sweepRepoShim) MarkAbandoned(ctx context.Context, db *gorm.DB, id, notes string) error {
	return repo.MarkAbandoned(ctx, db, id, notes)
}

func (sweepRepoShim) CartStatusCounts(ctx context.Context, db *gorm.DB, cutoff time.Time) (repo.StatusCounts, error) {
	return repo.CartStatusCounts(ctx, db, cutoff)
}

func (sweepRepoShim) PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, db, now)
}

// recoveryRepoShim adapts the repository free functions to services.RecoveryRepo.
type recoveryRepoShim struct{}

func (recoveryRepoShim) ListRecoveryCandidates(ctx context.Context, db *gorm.DB, gapCutoff time.Time, limit int) ([]domain.CartTracking, error) {
	return repo.ListRecoveryCandidates(ctx, db, gapCutoff, limit)
}

func (recoveryRepoShim) AdvanceReminderStage(ctx context.Context, db *gorm.DB, id string, next int, sentAt time.Time, notes string) error {
	return repo.AdvanceReminderStage(ctx, db, id, next, sentAt, notes)
}

// catalogShim exposes the product read model through services.Catalog.
type catalogShim struct{ db *gorm.DB }

// ProductsByID proxies repo.ProductsByID.
func (s catalogShim) ProductsByID(ctx context.Context, ids []uint) (map[uint]domain.Product, error) {
	return repo.ProductsByID(ctx, s.db, ids)
}

// idemStoreShim exposes idempotency persistence to the handlers.
type idemStoreShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Get proxies repo.GetIdempotency.
func (s idemStoreShim) Get(ctx context.Context, sessionID, key string, now time.Time) (*domain.IdempotencyKey, error) {
	return repo.GetIdempotency(ctx, s.db, sessionID, key, now)
}

// Create proxies repo.CreateIdempotency.
func (s idemStoreShim) Create(ctx context.Context, sessionID, key, cartID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, sessionID, key, cartID, status, s.ttl)
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per session/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, mailer notify.Mailer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (job secrets and operator
	// tokens must never land in logs)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			middleware.HeaderSweepSecret,
			middleware.HeaderAdminToken,
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting). The session is
	// resolved from the cookie only: a request without an established
	// session cannot be a replay.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(c *gin.Context) string {
			sid, _ := c.Cookie(cfg.Session.CookieName)
			return sid
		},
		func(ctx context.Context, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per session/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP(cfg.Session.CookieName))
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true, // session cookie must survive cross-origin storefront calls
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/collaborators
	catalog := catalogShim{db: db}
	cartSvc := &services.CartService{
		DB:       db,
		Repo:     cartRepoShim{},
		Catalog:  catalog,
		Profiles: services.NoDirectory{},
	}
	sweepSvc := &services.SweepService{DB: db, Repo: sweepRepoShim{}}
	recoverySvc := &services.RecoveryService{
		DB:              db,
		Repo:            recoveryRepoShim{},
		Catalog:         catalog,
		Mailer:          mailer,
		MinGap:          cfg.Lifecycle.RecoveryMinGap,
		BatchSize:       cfg.Lifecycle.RecoveryBatchSize,
		DiscountCode:    cfg.Lifecycle.DiscountCode,
		DiscountPercent: cfg.Lifecycle.DiscountPercent,
	}

	h := handlers.New(
		cartSvc, sweepSvc, recoverySvc,
		idemStoreShim{db: db, ttl: cfg.IdempotencyTTL},
		cfg.Session.CookieName, cfg.Session.CookieTTL,
		handlers.JobDefaults{
			TTLMinutes: cfg.Lifecycle.AbandonTTLMinutes,
			SweepBatch: cfg.Lifecycle.SweepBatchSize,
		},
	)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Cart signals (browser-facing)
		api.POST("/cart/activity", h.RecordActivity)
		api.POST("/cart/heartbeat", h.Heartbeat)

		// Batch jobs (external scheduler)
		jobs := api.Group("/jobs", middleware.SchedulerAuth(cfg.Auth.SchedulerSecret))
		{
			jobs.POST("/sweep", h.RunSweep)
			jobs.PATCH("/sweep", h.RunSweep)
			jobs.GET("/sweep-status", h.SweepStatus)
			jobs.POST("/recovery-run", h.RunRecovery)
		}

		// Manual resolution (operators)
		admin := api.Group("/admin", middleware.OperatorAuth(cfg.Auth.AdminToken))
		{
			admin.GET("/carts", h.ListCarts)
			admin.PATCH("/carts/:id", h.ResolveCart)
			admin.DELETE("/carts/:id", h.DeleteCart)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

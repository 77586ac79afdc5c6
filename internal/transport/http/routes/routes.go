package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/handlers"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/middleware"
	"github.com/NoroNetwork/ppv-streaming/internal/usecase"
)

// AuthService covers both the auth endpoints and bearer token checks.
type AuthService interface {
	handlers.Authenticator
	middleware.Authenticator
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     AuthService
	Payments handlers.Payments
	Ledger   handlers.EntitlementLister
	Streams  handlers.Streams
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	// MetricsHandler serves /metrics. Defaults to the global Prometheus registry.
	MetricsHandler http.Handler
	Services       ServiceSet
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Forwarding headers feed ClientIP and thus the per-IP rate limits, so
	// only listed proxies may set them.
	if err := r.SetTrustedProxies(deps.Config.App.TrustedProxies); err != nil {
		deps.Logger.Error("invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	errs := handlers.ErrorResponder{Debug: deps.Config.App.Debug, Logger: deps.Logger}
	requireAuth := middleware.RequireAuth(deps.Services.Auth)
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)
	apiLimit := buildAPIMiddlewares(deps)

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, errs)
		authGroup := api.Group("/auth")
		authHandler.RegisterRoutes(authGroup)
		authGroup.GET("/me", requireAuth, authHandler.Me)

		paymentHandler := handlers.NewPaymentHandler(deps.Services.Payments, deps.Services.Ledger, errs)
		paymentGroup := api.Group("/payments")
		// Gateway deliveries authenticate by signature, not bearer token.
		paymentGroup.POST("/webhook", paymentHandler.Webhook)
		paymentGroup.POST("/intents", withAPILimit(apiLimit, requireAuth, paymentHandler.CreateIntent)...)

		api.GET("/entitlements", withAPILimit(apiLimit, requireAuth, paymentHandler.ListEntitlements)...)

		streamHandler := handlers.NewStreamHandler(deps.Services.Streams, errs)
		streamGroup := api.Group("/streams/:id")
		streamGroup.Use(requireAuth)
		streamGroup.GET("/playback", withAPILimit(apiLimit, streamHandler.Playback)...)

		adminGroup := streamGroup.Group("")
		adminGroup.Use(requireAdmin)
		adminGroup.POST("/provision", streamHandler.Provision)
		adminGroup.DELETE("/provision", streamHandler.Deprovision)
		adminGroup.GET("/stats", streamHandler.Stats)
	}

	return r
}

func withAPILimit(limit []gin.HandlerFunc, chain ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(limit)+len(chain))
	out = append(out, limit...)
	return append(out, chain...)
}

func buildAPIMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.APIMaxRequests
	window := deps.Config.RateLimit.APIWindow
	if limit <= 0 || window <= 0 {
		return nil
	}

	rule := middleware.RateLimitRule{
		Name:       usecase.RateLimitActionAPI,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

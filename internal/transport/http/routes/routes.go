package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/infra/config"
	"github.com/renthol/rental-service/internal/transport/http/handlers"
	"github.com/renthol/rental-service/internal/transport/http/middleware"
	"github.com/renthol/rental-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Passwords    *usecase.PasswordService
	Users        *usecase.UserService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
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
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	r.Use(middleware.CORS([]string{deps.Config.App.ClientURL}))
	r.Use(middleware.CSRF())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)
	adminMiddleware := middleware.RequireAdmin()

	cookies := handlers.CookieSettings{
		Secure: deps.Config.App.Env == "production",
	}

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(
			deps.Services.Registration,
			deps.Services.Auth,
			cookies,
			deps.Config.Auth.SessionTTL,
			deps.Config.Auth.OTPTTL,
		)
		authHandler.RegisterRoutes(api.Group("/auth"),
			limitChain(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
			limitChain(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
		)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords)
		passwordHandler.RegisterRoutes(api.Group("/password"), authMiddleware,
			limitChain(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts))

		userHandler := handlers.NewUserHandler(deps.Services.Users)

		userGroup := api.Group("/user")
		userGroup.Use(authMiddleware)
		userHandler.RegisterProfileRoutes(userGroup)

		adminGroup := api.Group("/admin")
		adminGroup.Use(authMiddleware, adminMiddleware)
		userHandler.RegisterAdminRoutes(adminGroup)
	}

	return r
}

func limitChain(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = 10 * time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

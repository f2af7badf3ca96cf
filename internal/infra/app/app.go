package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/captcha"
	"github.com/renthol/rental-service/internal/infra/config"
	"github.com/renthol/rental-service/internal/infra/database"
	kafkainfra "github.com/renthol/rental-service/internal/infra/kafka"
	"github.com/renthol/rental-service/internal/infra/logger"
	"github.com/renthol/rental-service/internal/infra/mail"
	redisinfra "github.com/renthol/rental-service/internal/infra/redis"
	"github.com/renthol/rental-service/internal/infra/security"
	postgresrepo "github.com/renthol/rental-service/internal/repository/postgres"
	redisrepo "github.com/renthol/rental-service/internal/repository/redis"
	"github.com/renthol/rental-service/internal/transport/http/middleware"
	"github.com/renthol/rental-service/internal/transport/http/routes"
	"github.com/renthol/rental-service/internal/usecase"
)

// Application owns the process-level resources and the HTTP engine.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	tokenIssuer, err := security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.App.Name, cfg.Auth.AccessTokenTTL, cfg.Auth.ResetTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	contactCipher, err := security.NewContactCipher(cfg.Auth.ContactCryptoSecret)
	if err != nil {
		return nil, fmt.Errorf("init contact cipher: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.SMTP, log)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	captchaVerifier, err := captcha.NewVerifier(cfg.Captcha, log)
	if err != nil {
		return nil, fmt.Errorf("init captcha verifier: %w", err)
	}

	var activityRecorder port.ActivityRecorder
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub recorder", zap.Error(err))
			activityRecorder = kafkainfra.NewStubRecorder(log)
		} else {
			activityRecorder = kafkainfra.NewActivityPublisher(producer, cfg.App, log)
			log.Info("kafka activity publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub recorder")
		activityRecorder = kafkainfra.NewStubRecorder(log)
	}

	repos := postgresrepo.NewRepositories(pool)

	keyPrefix := cfg.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "rental"
	}

	pendingStore := redisrepo.NewPendingUserRepository(redisClient.Client(), keyPrefix+":pending")
	sessionStore := redisrepo.NewSessionStore(redisClient.Client(), keyPrefix+":session")

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = 10 * time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: keyPrefix + ":rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	registrationService := usecase.NewRegistrationService(
		repos.Users, pendingStore, mailer, contactCipher, activityRecorder, cfg.Auth.OTPTTL, log)

	authService := usecase.NewAuthService(
		repos.Users, sessionStore, captchaVerifier, tokenIssuer, activityRecorder,
		usecase.AuthConfig{
			LockoutThreshold:   cfg.Auth.LockoutThreshold,
			LockoutDuration:    cfg.Auth.LockoutDuration,
			SessionTTL:         cfg.Auth.SessionTTL,
			PasswordMaxAgeDays: cfg.Auth.PasswordMaxAgeDays,
		}, log)

	passwordService := usecase.NewPasswordService(
		repos.Users, tokenIssuer, mailer, activityRecorder,
		cfg.App.ClientURL, cfg.Auth.ResetTokenTTL, cfg.Auth.PasswordHistoryLimit, log)

	userService := usecase.NewUserService(repos.Users, activityRecorder, cfg.Auth.LockoutDuration, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: "rental"})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Passwords:    passwordService,
			Users:        userService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting rental API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

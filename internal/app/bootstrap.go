// Package app wires configuration, storage, services, and routes into one
// runnable HTTP handler.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"viewsphere/internal/auth"
	"viewsphere/internal/db"
	"viewsphere/internal/media"
	"viewsphere/internal/observability"
	"viewsphere/internal/user"
	"viewsphere/internal/video"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", zap.Error(err))
	}

	if options.RunMigrations {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	uploader, err := media.NewS3Store(ctx, media.Config{
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	userStore := user.NewPostgres(pool)
	hasher := auth.NewPasswordHasher()
	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})

	authService := auth.NewService(userStore, issuer, hasher)
	authService.WithLockoutPolicy(cfg.LoginMaxAttempts, cfg.LoginLockWindow)
	authHandler := auth.NewHandler(authService)
	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	userService := user.NewService(userStore, hasher)
	userHandler := user.NewHandler(userService, uploader)

	videoRepo := video.NewRepository(pool)
	videoHandler := video.NewHandler(videoRepo, uploader)

	metrics := observability.NewMetrics()

	guard := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(issuer, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/signup", userHandler.Signup)
	mux.Handle("POST /users/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /users/refresh-token", authHandler.Refresh)
	mux.Handle("POST /users/logout", guard(authHandler.Logout))
	mux.Handle("POST /users/change-password", guard(userHandler.ChangePassword))
	mux.Handle("GET /users/me", guard(userHandler.Me))
	mux.Handle("PATCH /users/me", guard(userHandler.UpdateMe))
	mux.Handle("PATCH /users/me/avatar", guard(userHandler.UpdateAvatar))
	mux.Handle("PATCH /users/me/cover-image", guard(userHandler.UpdateCoverImage))
	mux.HandleFunc("GET /users/channel/{username}", userHandler.Channel)
	mux.HandleFunc("GET /videos", videoHandler.List)
	mux.Handle("POST /videos", guard(videoHandler.Create))
	mux.Handle("PATCH /videos/{id}", guard(videoHandler.Update))
	mux.Handle("DELETE /videos/{id}", guard(videoHandler.Delete))
	mux.HandleFunc("GET /health", healthHandler(pool))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			metrics.Middleware(mux)))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			pool.Close()
			return logger.Sync()
		},
	}, nil
}

func healthHandler(pool interface {
	Ping(ctx context.Context) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := pool.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"wunschliste/internal/auth"
	"wunschliste/internal/backend"
	"wunschliste/internal/cache"
	"wunschliste/internal/cli"
	apphttp "wunschliste/internal/http"
	"wunschliste/internal/imaging"
	"wunschliste/internal/metrics"
	"wunschliste/internal/services"
	"wunschliste/internal/storage"
)

const (
	thumbCacheEntries = 512
	thumbCacheBytes   = 32 << 20
	thumbCacheTTL     = time.Hour
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger, m).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	dir, err := auth.DefaultDirectory(cfg.BcryptCost)
	if err != nil {
		logger.Error("Failed to set up accounts", "error", err)
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.CookieSecure)
	if err != nil {
		logger.Error("Failed to set up sessions", "error", err)
		os.Exit(1)
	}

	thumbs := cache.NewByteLRUCache(thumbCacheEntries, thumbCacheBytes, thumbCacheTTL)
	caches := cache.NewManager()
	caches.Register(thumbs)
	caches.StartCleanup(10 * time.Minute)

	users := dir.Users()
	deps := apphttp.Deps{
		Wishes:         services.NewWishService(result.Store, users, m),
		Planning:       services.NewPlanningService(result.Store, users, cfg.Days(time.Now()), m),
		Directory:      dir,
		Sessions:       sessions,
		Images:         imaging.NewProcessor(cfg.ImageMaxBytes, cfg.ImageMaxDimension, thumbs),
		Metrics:        m,
		TrustedProxies: cfg.TrustedProxies,
		AdventImageDir: cfg.AdventImageDir,
		UploadMaxBytes: cfg.UploadMaxBytes,
	}
	if p, ok := result.Store.(storage.Pinger); ok {
		deps.Ready = p
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", "error", err)
			}
		}
	})

	logger.Info("Starting wunschliste server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"store", result.Store.Name(),
		"event_days", deps.Planning.Days())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

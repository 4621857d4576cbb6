package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"hielitos/backend/internal/cache"
	"hielitos/backend/internal/config"
	"hielitos/backend/internal/httpapi"
	"hielitos/backend/internal/logging"
	"hielitos/backend/internal/service"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/store/memory"
	pgstore "hielitos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatalf("postgres migrate: %v", err)
		}
		if err := pg.SeedAdmin(ctx, cfg.SeedAdminPassword); err != nil {
			logger.Fatalf("postgres seed: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.WithField("repository", "postgres").Info("repository ready")
	} else {
		mem, err := memory.NewSeeded(cfg.SeedAdminPassword, logger)
		if err != nil {
			logger.Fatalf("memory seed: %v", err)
		}
		repo = mem
		logger.WithField("repository", "memory").Info("repository ready")
	}

	var dashboards cache.DashboardCache = cache.NewMemoryDashboardCache()
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warnf("redis unavailable (%v), using in-process dashboard cache", err)
		} else {
			dashboards = redisCache
			closers = append(closers, redisCache.Close)
			logger.WithField("cache", "redis").Info("dashboard cache ready")
		}
	}

	svc := service.New(repo, dashboards, service.Options{
		DashboardTTL: time.Duration(cfg.DashboardCacheTTLSeconds) * time.Second,
		Location:     loc,
		Logger:       logger,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		LoginRate:     cfg.LoginRateLimit,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("http api: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": cfg.Address(), "timezone": loc.String()}).Info("hielitos backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Errorf("close error: %v", err)
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	// The in-memory store is for local use; a persistent store must not get the dev admin.
	if cfg.DatabaseURL != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters when DATABASE_URL is set")
	}
	if _, err := limiter.NewRateFromFormatted(cfg.LoginRateLimit); err != nil {
		return fmt.Errorf("LOGIN_RATE_LIMIT: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/api"
	"github.com/Harshitk-cp/storybrain/internal/buildconfig"
	"github.com/Harshitk-cp/storybrain/internal/config"
	"github.com/Harshitk-cp/storybrain/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if config.AppEnv() != "production" {
		cfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel())
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	if config.MigrateOnStart() {
		version, err := store.Migrate(dbURL, config.MigrationsPath())
		if err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Uint("version", version))
	}

	app, err := api.NewApp(ctx, pool, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}

	// Start background services
	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.Stringer("build", buildconfig.Current()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop background services
	app.Stop(shutdownCtx)

	logger.Info("server stopped")
}

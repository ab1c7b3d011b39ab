package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proflinker/api/internal/config"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/logging"
	"github.com/proflinker/api/internal/telemetry"
	"go.uber.org/zap"

	_ "github.com/proflinker/api/docs" // Swagger docs
)

const version = "0.1.0"

// @title Professor Linker API
// @version 0.1.0
// @description Generates university and professor suggestions for prospective graduate students, drafts outreach email and keeps favorites.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx := context.Background()

	cfg := config.Load()

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Professor Linker API starting...",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.String("generation_backend", cfg.GenerationBackend),
	)

	shutdownTelemetry, err := telemetry.InitTracer(ctx, "proflinker-api", version, cfg.TelemetryEndpoint)
	if err != nil {
		// collector may be down; serve without traces
		logger.Error("failed to initialize telemetry", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTelemetry(ctx); err != nil {
				logger.Error("failed to shutdown telemetry", zap.Error(err))
			}
		}()
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if _, err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	var rdb *database.Redis
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis, using in-process stores", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var bus *eventbus.Bus
	if cfg.NATSURL != "" {
		bus, err = eventbus.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS, keeping events in process", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
		}
	}

	app, err := newApp(cfg, db, rdb, bus, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := app.router()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// generation may wait for the full timeout before answering
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}

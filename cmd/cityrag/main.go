package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/app"
	"github.com/kailas-cloud/cityrag/internal/config"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
	"github.com/kailas-cloud/cityrag/internal/metrics"
	chiTransport "github.com/kailas-cloud/cityrag/internal/transport/chi"
	"github.com/kailas-cloud/cityrag/internal/transport/mcp"
	"github.com/kailas-cloud/cityrag/internal/version"
)

const mcpPath = "/mcp"

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cityrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("scraper_enabled", cfg.Scraper.BaseURL != ""),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics(prometheus.DefaultRegisterer)
	metrics.RegisterRAGMetrics()
	metrics.RegisterEmbeddingMetrics()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()
	logger.Info("Connected to database")

	if cfg.Admin.AllowPurgeAll {
		logger.Warn("Global purge is enabled")
	}

	auth := chiTransport.NewAuthenticator(cfg.Auth.APIKeys, cfg.Auth.JWTSecret)
	if !auth.Enabled() {
		logger.Warn("Authentication disabled, every request is an anonymous reader")
	}

	tools := mcp.NewTools(a.MCPServices(), a.Limits, logger)
	mcpServer := mcp.NewServer(tools, version.Version)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(auth.Middleware())
	r.Use(metrics.Middleware())
	chiTransport.NewServer(a.HTTPServices(), a.Limits, logger).Routes(r)
	r.Handle(mcpPath, mcp.NewHTTPHandler(mcpServer, mcpPath))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.String("mcp_path", mcpPath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

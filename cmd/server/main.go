package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "authmedia/docs" // swagger docs

	"authmedia/internal/app"
	"authmedia/internal/config"
	"authmedia/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// @title Auth & Media API
// @version 1.0
// @description Session authentication, admin session management, avatar and media uploads.
// @host localhost:3000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.IsProduction())
	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	swaggerHost := cfg.SwaggerHost
	if swaggerHost == "" {
		swaggerHost = cfg.BaseURL
	}
	logger.Info(ctx, "swagger documentation available", "url", swaggerHost+"/swagger/index.html")

	addr := ":" + cfg.ServerPort
	go func() {
		logger.Info(ctx, "server listening", "addr", addr, "env", cfg.Env)
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info(ctx, "shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server shutdown", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error(ctx, "release resources", "error", err)
	}
}

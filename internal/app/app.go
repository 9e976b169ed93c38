// Package app assembles the HTTP server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"authmedia/internal/auth"
	"authmedia/internal/cache"
	"authmedia/internal/config"
	"authmedia/internal/db"
	"authmedia/internal/handler"
	"authmedia/internal/logging"
	"authmedia/internal/mail"
	"authmedia/internal/media"
	"authmedia/internal/repository"
	"authmedia/internal/router"
	"authmedia/internal/service"
	"authmedia/internal/upload"
)

const appName = "Auth & Media"

// App owns the server and the resources it must release on shutdown.
type App struct {
	Echo  *echo.Echo
	DB    *gorm.DB
	Cache *cache.Client
}

// New opens the database, runs migrations and wires every component.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	gormDB, err := db.OpenAndMigrate(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if cfg.RedisAddr == "" {
		logger.Info(ctx, "redis not configured, caching and rate limiting disabled")
	} else if err := cacheClient.Ping(ctx); err != nil {
		logger.Warn(ctx, "redis unreachable, continuing without cache", "error", err)
	}

	a := &App{DB: gormDB, Cache: cacheClient}
	e, err := build(cfg, logger, gormDB, cacheClient)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Echo = e
	return a, nil
}

func build(cfg *config.Config, logger logging.Logger, gormDB *gorm.DB, cacheClient *cache.Client) (*echo.Echo, error) {
	processor, err := media.NewProcessor(cfg.StorageDir, cfg.ImageWorkers, logger)
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}
	gate, err := upload.NewGate(filepath.Join(cfg.StorageDir, "temp"), logger)
	if err != nil {
		return nil, fmt.Errorf("upload temp dir: %w", err)
	}

	var sender mail.Sender = mail.NewNopSender(logger)
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:               cfg.SMTPHost,
			Port:               cfg.SMTPPort,
			Username:           cfg.SMTPUser,
			Password:           cfg.SMTPPassword,
			From:               cfg.SMTPFrom,
			InsecureSkipVerify: cfg.SMTPInsecureSkipVerify,
		})
	}
	notifier, err := mail.NewNotifier(sender, cfg.BaseURL, appName, logger)
	if err != nil {
		return nil, fmt.Errorf("mail templates: %w", err)
	}

	var google service.OAuthProvider
	if g := auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/api/auth/callback/google"); g != nil {
		google = g
	}

	store := repository.NewStore(gormDB)
	urls := service.NewURLBuilder(cfg.BaseURL)
	jwtService := auth.NewJWTService(cfg.AuthSecret)
	limiter := auth.NewRateLimiter(cacheClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	sessionService := service.NewSessionService(store, cfg.SessionExpiry, cfg.SessionUpdateAge, logger)
	authService := service.NewAuthService(store, sessionService, jwtService, notifier, google, service.AuthConfig{
		RequireEmailVerification: cfg.RequireEmailVerification,
	}, logger)
	adminService := service.NewAdminService(store, processor, cacheClient, logger)
	avatarService := service.NewAvatarService(store, processor, cacheClient, urls, logger)
	mediaService := service.NewMediaService(store, processor, urls, logger)
	userService := service.NewUserService(store.Users(), urls)

	cookie := handler.CookieConfig{Secure: cfg.IsProduction()}
	e := echo.New()
	router.Register(e, cfg, logger, sessionService, limiter, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, sessionService, cookie),
		Admin:  handler.NewAdminHandler(sessionService, adminService),
		Avatar: handler.NewAvatarHandler(avatarService, gate),
		Media:  handler.NewMediaHandler(mediaService, gate),
		User:   handler.NewUserHandler(userService),
		Health: handler.NewHealthHandler(cfg.Env),
	})
	return e, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	return errors.Join(db.Close(a.DB), a.Cache.Close())
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidhost/backend/internal/account"
	"github.com/vidhost/backend/internal/auth"
	"github.com/vidhost/backend/internal/channels"
	"github.com/vidhost/backend/internal/config"
	"github.com/vidhost/backend/internal/credentials"
	"github.com/vidhost/backend/internal/db"
	"github.com/vidhost/backend/internal/handlers"
	"github.com/vidhost/backend/internal/media"
	"github.com/vidhost/backend/internal/middleware"
	"github.com/vidhost/backend/internal/repositories"
	"github.com/vidhost/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup drains background work and must be called on shutdown.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	blobs, err := storage.NewS3Storage(ctx, cfg.Media)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure media storage: %w", err)
	}

	signer, err := auth.NewSigner(auth.Config{
		AccessSecret:  cfg.Tokens.AccessSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	proxies, err := middleware.ParseProxies(cfg.Auth.TrustedProxies)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	creds := credentials.NewStore(repositories.NewPostgresUserRepository(pool), cfg.Auth.BcryptCost)
	sessions := auth.NewManager(signer, creds)
	cleaner := media.NewCleaner(blobs, media.CleanerConfig{}, logger)
	uploader := media.NewUploader(blobs, cfg.Media.UploadTimeout)

	deps := handlers.Dependencies{
		Accounts:       account.NewService(creds, sessions, uploader, cleaner),
		Channels:       channels.NewService(repositories.NewPostgresSubscriptionRepository(pool), repositories.NewPostgresVideoRepository(pool)),
		Authenticator:  sessions,
		AuthLimiter:    middleware.NewIPRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateLimitWindow, cfg.Auth.RateLimit, 0),
		Proxies:        proxies,
		Database:       pool,
		Metrics:        middleware.MetricsHandler(),
		Cookies:        handlers.CookieConfig{Secure: cfg.Auth.CookieSecure},
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
	}

	return deps, cleaner.Shutdown, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"blogapi/app/auth"
	"blogapi/app/controllers"
	"blogapi/app/repositories"
	"blogapi/app/routes"
	"blogapi/app/services"
	"blogapi/app/storage"
	"blogapi/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the long lived pieces of a running server.
type App struct {
	cfg     *config.Config
	repo    repositories.PostRepository
	handler http.Handler
	logger  zerolog.Logger
}

// NewApp opens storage and builds the HTTP handler described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	images, err := storage.NewDiskImageStore(cfg.Media.Root, cfg.Media.URLPrefix)
	if err != nil {
		repo.Close()
		return nil, err
	}

	tokens := auth.NewTokens([]byte(cfg.Auth.SigningKey), cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	router := routes.SetupRoutes(routes.Dependencies{
		Posts:         services.NewPostService(repo, images),
		Images:        images,
		Authenticator: tokens,
		Credentials: auth.Credentials{
			Username:     cfg.Auth.Username,
			PasswordHash: cfg.Auth.PasswordHash,
		},
		Tokens: tokens,
		Site: controllers.Site{
			Title:       cfg.Site.Title,
			Description: cfg.Site.Description,
			BaseURL:     cfg.Site.BaseURL,
		},
		BasePath:       cfg.HTTP.BasePath,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		Logger:         logger,
	})

	return &App{cfg: cfg, repo: repo, handler: router, logger: logger}, nil
}

// Handler returns the application's root handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases the post store.
func (a *App) Close() error {
	return a.repo.Close()
}

// Run serves on l until ctx is canceled, then drains in-flight requests
// for at most the configured shutdown timeout.
func (a *App) Run(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.logger.WithContext(context.Background()) },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", l.Addr().String()).Msg("Starting server")
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	a.logger.Info().Msg("Server stopped")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (repositories.PostRepository, error) {
	repo, err := repositories.Open(ctx, repositories.Options{
		Driver:           cfg.Storage.Driver,
		SQLitePath:       cfg.Storage.SQLite.Path,
		PostgresDSN:      cfg.Storage.Postgres.DSN,
		PostgresMaxConns: cfg.Storage.Postgres.MaxConns,
		BadgerPath:       cfg.Storage.Badger.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	return repo, nil
}

// newLogger configures the global logger from cfg and returns it.
func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level: %w", err)
	}

	logger := zerolog.New(os.Stderr)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger = logger.Level(level).With().Timestamp().Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger, nil
}

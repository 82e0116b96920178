// Package app wires the services shared by the web server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dermassist/client/internal/backend"
	"dermassist/client/internal/config"
	"dermassist/client/internal/service"
	"dermassist/client/internal/storage"
)

type App struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	Store    storage.Store
	Backend  *backend.Client
	Session  *service.SessionService
	Theme    *service.ThemeService
	Analysis *service.AnalysisService
	History  *service.HistoryService
}

// New opens the persisted state and builds the services. The session is
// seeded from storage but not yet verified; call Session.Initialize.
func New(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*App, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := backend.New(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		MaxRPS:  cfg.Backend.MaxRPS,
	}, log.With().Str("component", "backend").Logger())

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Backend:  client,
		Session:  service.NewSessionService(ctx, client, store, cfg.Storage.TokenKey, log.With().Str("component", "session").Logger()),
		Theme:    service.NewThemeService(ctx, store, cfg.Storage.ThemeKey, log.With().Str("component", "theme").Logger()),
		Analysis: service.NewAnalysisService(client, cfg.Analysis.MinDuration, log),
		History:  service.NewHistoryService(client, log),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

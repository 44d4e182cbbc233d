package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"notehub-sync/core/config"
	"notehub-sync/core/database"
	"notehub-sync/core/feed/remote"
	"notehub-sync/core/index"
	"notehub-sync/core/logger"
	"notehub-sync/core/storage"
)

// app bundles the wiring every subcommand needs: configuration, logger, the
// shadow database and the remote API client.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  *index.Store
	remote *remote.Client
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open shadow database: %w", err)
	}
	store, err := index.New(db)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    logg,
		store:  store,
		remote: remote.NewClient(cfg.Remote),
	}, nil
}

func (a *app) storageClient() (storage.Client, error) {
	return storage.NewClient(a.cfg.Storage)
}

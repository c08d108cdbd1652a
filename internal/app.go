// Package internal contains core application functionality
package internal

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"tracklet/internal/config"
	"tracklet/internal/database"
	"tracklet/internal/jobs"
	"tracklet/internal/pkg/geoip"
	"tracklet/internal/visits"
)

// Application wraps cartridge.Application with tracklet-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Logger    *slog.Logger
	Geo       geoip.Resolver
	GeoLite   *geoip.GeoLiteResolver
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	resolver, geolite, err := geoip.NewResolver(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize geolocation: %w", err)
	}

	ingestor := visits.NewIngestor(resolver)
	ingestor.Window = cfg.UniquenessWindow()
	ingestor.StrictUniqueness = cfg.StrictUniqueness
	logger.Info("Ingestion configured",
		slog.Duration("uniqueness_window", ingestor.Window),
		slog.Bool("strict_uniqueness", ingestor.StrictUniqueness))

	scheduler := jobs.NewScheduler(dbManager, logger, cfg, geolite)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		RouteMountFunc: RouteMounter(RouteDeps{
			Ingestor: ingestor,
			Geo:      resolver,
		}),
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Logger:      logger,
		Geo:         resolver,
		GeoLite:     geolite,
	}, nil
}

package geoip

import (
	"fmt"
	"log/slog"

	"tracklet/internal/config"
)

// NewResolver builds the resolver chain selected by configuration. The
// GeoLite resolver is returned separately so the reload job can refresh it;
// it is nil for other providers.
func NewResolver(cfg *config.Config, logger *slog.Logger) (Resolver, *GeoLiteResolver, error) {
	var (
		base    Resolver
		geolite *GeoLiteResolver
	)

	switch cfg.GeoProvider {
	case config.GeoProviderNone:
		logger.Info("Geolocation disabled")
		return NopResolver{}, nil, nil
	case config.GeoProviderGeoLite:
		r, err := NewGeoLiteResolver(cfg.GeoDBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize GeoLite resolver: %w", err)
		}
		base, geolite = r, r
	default:
		base = NewIPAPIResolver(cfg.GeoAPIURL, cfg.GeoTimeout(), logger)
	}

	if ttl := cfg.GeoCacheTTL(); ttl > 0 {
		base = NewCachedResolver(base, ttl, logger)
	}

	logger.Info("Geolocation resolver ready",
		slog.String("provider", cfg.GeoProvider),
		slog.Int("cache_ttl_minutes", cfg.GeoCacheTTLMinutes))
	return base, geolite, nil
}

package jobs

import (
	"fmt"
	"log/slog"
	"os"

	"tracklet/internal/pkg/geoip"
)

// GeoLiteReloadJob reopens the GeoLite2 database when the file on disk changes,
// so a replaced mmdb takes effect without a restart.
type GeoLiteReloadJob struct {
	resolver *geoip.GeoLiteResolver
	logger   *slog.Logger
}

func NewGeoLiteReloadJob(resolver *geoip.GeoLiteResolver, logger *slog.Logger) *GeoLiteReloadJob {
	return &GeoLiteReloadJob{resolver: resolver, logger: logger}
}

// Run reloads the database if its modification time moved. It reports whether a reload happened.
func (j *GeoLiteReloadJob) Run() (bool, error) {
	info, err := os.Stat(j.resolver.Path())
	if os.IsNotExist(err) {
		j.logger.Debug("GeoLite2 database still missing", slog.String("path", j.resolver.Path()))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat GeoLite2 database: %w", err)
	}

	if j.resolver.Loaded() && info.ModTime().Equal(j.resolver.ModTime()) {
		return false, nil
	}

	if err := j.resolver.Reload(); err != nil {
		return false, err
	}
	return true, nil
}

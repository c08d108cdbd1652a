package geoip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
)

var errGeoLiteNotLoaded = errors.New("GeoLite2 database not loaded")

// GeoLiteResolver looks countries up in a local MaxMind GeoLite2 database.
type GeoLiteResolver struct {
	path      string
	logger    *slog.Logger
	countries *gountries.Query

	mu      sync.RWMutex
	db      *geoip2.Reader
	modTime time.Time
}

// NewGeoLiteResolver opens the database at path. A missing file is not an
// error: the resolver stays empty until Reload finds one.
func NewGeoLiteResolver(path string, logger *slog.Logger) (*GeoLiteResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &GeoLiteResolver{
		path:      path,
		logger:    logger,
		countries: gountries.New(),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the database file location.
func (r *GeoLiteResolver) Path() string {
	return r.path
}

// Reload reopens the database from disk, replacing the current reader.
func (r *GeoLiteResolver) Reload() error {
	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - geolocation disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to stat GeoLite2 database: %w", err)
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open GeoLite2 database: %w", err)
	}

	r.mu.Lock()
	old := r.db
	r.db = db
	r.modTime = info.ModTime()
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}

	r.logger.Info("GeoLite2 database loaded",
		slog.String("path", r.path),
		slog.Time("mod_time", info.ModTime()))
	return nil
}

// ModTime returns the modification time of the loaded database file.
func (r *GeoLiteResolver) ModTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modTime
}

// Loaded reports whether a database is open.
func (r *GeoLiteResolver) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db != nil
}

// ResolveCountry implements Resolver.
func (r *GeoLiteResolver) ResolveCountry(ctx context.Context, ip string) Country {
	country, err := r.Lookup(ctx, ip)
	if errors.Is(err, errGeoLiteNotLoaded) {
		return Country{}
	}
	if err != nil {
		r.logger.Warn("GeoLite2 lookup failed", slog.Any("error", err))
		return Country{}
	}
	return country
}

// Lookup implements Lookuper. An address missing from the database is a
// definite empty answer; an unloaded database or a read failure is an error.
func (r *GeoLiteResolver) Lookup(_ context.Context, ip string) (Country, error) {
	if IsPrivateIP(ip) {
		return Country{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return Country{}, errGeoLiteNotLoaded
	}

	record, err := r.db.Country(net.ParseIP(ip))
	if err != nil {
		return Country{}, fmt.Errorf("failed to read country record: %w", err)
	}

	code := record.Country.IsoCode
	name := record.Country.Names["en"]
	if name == "" && code != "" {
		if c, err := r.countries.FindCountryByAlpha(code); err == nil {
			name = c.Name.Common
		}
	}
	return newCountry(code, name), nil
}

// Close releases the underlying reader.
func (r *GeoLiteResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

package geoip

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/cache"
)

// CachedResolver memoises another resolver per IP for a fixed TTL. Only
// definite answers are stored, so a transient upstream failure is retried on
// the next visit instead of blanking the address for the whole TTL.
type CachedResolver struct {
	next   Resolver
	store  *cache.MemoryStore
	logger *slog.Logger
}

// NewCachedResolver wraps next with a read-through cache.
func NewCachedResolver(next Resolver, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResolver{
		next:   next,
		store:  cache.NewMemoryStore(cache.WithTTL(ttl), cache.WithCleanupInterval(ttl)),
		logger: logger,
	}
}

// ResolveCountry implements Resolver. Private addresses bypass the cache.
func (r *CachedResolver) ResolveCountry(ctx context.Context, ip string) Country {
	if IsPrivateIP(ip) {
		return Country{}
	}

	if raw, ok := r.store.Read(ctx, ip); ok {
		var country Country
		if err := json.Unmarshal(raw, &country); err == nil {
			return country
		}
	}

	country, decisive := r.lookup(ctx, ip)
	if !decisive {
		return country
	}

	raw, err := json.Marshal(country)
	if err != nil {
		return country
	}
	if err := r.store.Write(ctx, ip, raw); err != nil {
		r.logger.Debug("Failed to cache geolocation", slog.Any("error", err))
	}
	return country
}

// lookup asks the wrapped resolver and reports whether the answer may be cached.
// Resolvers without Lookup are trusted as is.
func (r *CachedResolver) lookup(ctx context.Context, ip string) (Country, bool) {
	lookuper, ok := r.next.(Lookuper)
	if !ok {
		return r.next.ResolveCountry(ctx, ip), true
	}

	country, err := lookuper.Lookup(ctx, ip)
	if err != nil {
		r.logger.Warn("Geolocation lookup failed, not caching",
			slog.Any("error", err))
		return Country{}, false
	}
	return country, true
}

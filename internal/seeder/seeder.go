// Package seeder fills a database with plausible page views for local development.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"

	"tracklet/internal/pkg/geoip"
	"tracklet/internal/timeframe"
	"tracklet/internal/visits"
)

// Seeder generates visits by running them through the real ingestion pipeline.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	VisitCount int
	Geo        geoip.Resolver
	Now        time.Time
	Days       int
}

// NewSeeder creates a new seeder instance. Geolocation is off unless Geo is set.
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, visitCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		VisitCount: visitCount,
		Geo:        geoip.NopResolver{},
		Now:        time.Now().UTC(),
		Days:       30,
	}
}

// Run seeds visits across baseURL's pages, spread over the last Days days.
// Visitors come back to the same pages, so the output has repeat visits too.
func (s *Seeder) Run(ctx context.Context, baseURL string) (int, error) {
	start := time.Now()
	s.Logger.Info("Seeding visits...",
		slog.String("base_url", baseURL),
		slog.Int("visits", s.VisitCount))

	visitors := generateVisitors(max(s.VisitCount/4, 5))
	paths := getPaths()
	referrers := getReferrers()
	span := time.Duration(s.Days) * 24 * time.Hour

	ingestor := visits.NewIngestor(s.Geo)
	created := 0
	for i := 0; i < s.VisitCount; i++ {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		visitor := visitors[rand.IntN(len(visitors))]
		path := paths[rand.IntN(len(paths))]
		at := s.Now.Add(-time.Duration(rand.Int64N(int64(span))))
		ingestor.Clock = &timeframe.FixedTimeProvider{Time: at}

		_, err := ingestor.Ingest(ctx, s.DBManager, s.Logger, &visits.TrackInput{
			URL:              baseURL + path.path,
			Title:            path.title,
			Referrer:         referrers[rand.IntN(len(referrers))],
			ScreenResolution: visitor.screen,
			SessionID:        fmt.Sprintf("session_%d_%d", at.Unix(), rand.IntN(1_000_000)),
			IPAddress:        visitor.ip,
			UserAgent:        visitor.userAgent,
		})
		if err != nil {
			s.Logger.Error("Failed to ingest visit during seeding", slog.Any("error", err))
			continue
		}
		created++
	}

	s.Logger.Info("Seeding completed",
		slog.Int("created", created),
		slog.Duration("elapsed", time.Since(start)))
	return created, nil
}

type visitor struct {
	ip        string
	userAgent string
	screen    string
}

type seedPath struct {
	path  string
	title string
}

func generateVisitors(count int) []visitor {
	userAgents := getUserAgents()
	screens := []string{"1920x1080", "1440x900", "390x844", "412x915", "820x1180", ""}

	seen := make(map[string]bool)
	out := make([]visitor, 0, count)
	for len(out) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.IntN(223)+1, rand.IntN(256), rand.IntN(256), rand.IntN(254)+1)
		if seen[ip] {
			continue
		}
		seen[ip] = true
		out = append(out, visitor{
			ip:        ip,
			userAgent: userAgents[rand.IntN(len(userAgents))],
			screen:    screens[rand.IntN(len(screens))],
		})
	}
	return out
}

func getPaths() []seedPath {
	return []seedPath{
		{path: "/", title: "Home"},
		{path: "/pricing", title: "Pricing"},
		{path: "/about", title: "About us"},
		{path: "/blog/launch", title: "We launched"},
		{path: "/docs/getting-started", title: "Getting started"},
		{path: "/contact", title: ""},
	}
}

// getUserAgents returns a list of common user agent strings
func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/118.0",
		"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"curl/7.81.0",
	}
}

// getReferrers returns a list of common referrers. Empty means a direct visit.
func getReferrers() []string {
	return []string{
		"",
		"",
		"https://google.com",
		"https://duckduckgo.com",
		"https://news.ycombinator.com",
		"https://github.com",
	}
}

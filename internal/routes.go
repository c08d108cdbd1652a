package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "tracklet/api/v1"
	"tracklet/internal/config"
	"tracklet/internal/http"
	"tracklet/internal/pkg/geoip"
	"tracklet/internal/visits"
)

// publicCORSConfig lets any site embed the tracker and post page views.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// dashboardCORSConfig allows a separately hosted dashboard to read the JSON API.
var dashboardCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept",
}

// RouteDeps carries the long-lived services the handlers need.
type RouteDeps struct {
	Ingestor *visits.Ingestor
	Geo      geoip.Resolver
}

// RouteMounter binds deps into a cartridge route mount function.
func RouteMounter(deps RouteDeps) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		MountRoutes(srv, deps)
	}
}

// MountRoutes mounts all application routes using cartridge's route API
func MountRoutes(srv *cartridge.Server, deps RouteDeps) {
	cfg := config.GetConfig()

	// Rate limiting would interfere with tests and local development.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70 requests per minute per IP
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	trackerConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	dashboardConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         dashboardCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// === ROOT ROUTES ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC TRACKING ===
	srv.Post("/api/track", v1.TrackVisitHandler(deps.Ingestor), publicAPIConfig)
	srv.Options("/api/track", v1.TrackPreflightHandler, publicAPIConfig)
	srv.Get("/tracker.js", v1.GetTrackerScriptAction, trackerConfig)

	// === DASHBOARD API ===
	srv.Get("/api/pages", http.PagesIndexAction, dashboardConfig)
	srv.Get("/api/pages/:id/stats", http.PageStatsAction, dashboardConfig)
	srv.Get("/api/pages/:id/visits", http.PageVisitsAction, dashboardConfig)
	srv.Get("/api/stats", http.StatsIndexAction, dashboardConfig)

	if !cfg.IsProduction() {
		geo := deps.Geo
		if geo == nil {
			geo = geoip.NopResolver{}
		}
		srv.Get("/api/debug/geoip", http.GeoIPDebugAction(geo), dashboardConfig)
	}
}

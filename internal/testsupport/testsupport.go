package testsupport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tracklet/internal"
	"tracklet/internal/config"
	"tracklet/internal/database"
	"tracklet/internal/pages"
	"tracklet/internal/pkg/geoip"
	"tracklet/internal/timeframe"
	"tracklet/internal/visitors"
	"tracklet/internal/visits"
)

func init() {
	// Test binaries never touch the development database.
	if os.Getenv("TRACKLET_ENV") == "" {
		os.Setenv("TRACKLET_ENV", config.Test)
	}
}

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a test database with all models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by root test name
// so subtests share it.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set TRACKLET_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	CleanTables(db, tableNames)
}

// CleanTables clears the given tables and resets their id sequences.
func CleanTables(db *gorm.DB, tables []string) {
	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestPage creates a page directly in the database
func CreateTestPage(t *testing.T, db *gorm.DB, url, title string) *pages.Page {
	t.Helper()

	now := time.Now().UTC()
	page := &pages.Page{URL: url, Title: title, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(page).Error)
	return page
}

// VisitOption customises a visit created by CreateTestVisit.
type VisitOption func(*visits.Visit)

// WithCountry sets the visit's country.
func WithCountry(code, name string) VisitOption {
	return func(v *visits.Visit) {
		v.IPCountryCode = &code
		v.IPCountryName = &name
	}
}

// AsBot marks the visit as automated traffic.
func AsBot() VisitOption {
	return func(v *visits.Visit) {
		v.IsBot = true
		v.UserAgent = "python-requests/2.25.1"
		v.Browser = "Unknown"
	}
}

// AsRepeat marks the visit as not unique.
func AsRepeat() VisitOption {
	return func(v *visits.Visit) {
		v.IsUnique = false
	}
}

// WithReferrer sets the visit's referrer.
func WithReferrer(referrer string) VisitOption {
	return func(v *visits.Visit) {
		v.Referrer = &referrer
	}
}

// CreateTestVisit inserts a visit directly, bypassing the ingestion pipeline.
func CreateTestVisit(t *testing.T, db *gorm.DB, pageID uint, fingerprint string, visitedAt time.Time, opts ...VisitOption) *visits.Visit {
	t.Helper()

	visit := &visits.Visit{
		PageID:             pageID,
		VisitorFingerprint: fingerprint,
		IPAddressHash:      visitors.HashIP(fingerprint),
		UserAgent:          "Mozilla/5.0 Test Browser",
		VisitedAt:          visitedAt.UTC(),
		IsUnique:           true,
		DeviceType:         "desktop",
		Browser:            "Chrome",
	}
	for _, opt := range opts {
		opt(visit)
	}
	require.NoError(t, db.Create(visit).Error)
	return visit
}

// StubResolver answers geolocation lookups from a fixed table and counts calls.
type StubResolver struct {
	Countries map[string]geoip.Country
	calls     int32
}

// ResolveCountry implements geoip.Resolver.
func (r *StubResolver) ResolveCountry(_ context.Context, ip string) geoip.Country {
	atomic.AddInt32(&r.calls, 1)
	if geoip.IsPrivateIP(ip) {
		return geoip.Country{}
	}
	return r.Countries[ip]
}

// Calls returns how many lookups were requested.
func (r *StubResolver) Calls() int {
	return int(atomic.LoadInt32(&r.calls))
}

// Country builds a resolved country value.
func Country(code, name string) geoip.Country {
	return geoip.Country{Code: &code, Name: &name}
}

// NewTestIngestor returns an ingestor bound to resolver and a fixed clock when now is non-zero.
func NewTestIngestor(resolver geoip.Resolver, now time.Time) *visits.Ingestor {
	ingestor := visits.NewIngestor(resolver)
	if !now.IsZero() {
		ingestor.Clock = &timeframe.FixedTimeProvider{Time: now}
	}
	return ingestor
}

// CreateTestApp creates a test Fiber app with all routes mounted.
func CreateTestApp(t *testing.T, db *gorm.DB, resolver geoip.Resolver) *fiber.App {
	t.Helper()

	return CreateTestAppWithIngestor(t, db, NewTestIngestor(resolver, time.Time{}), resolver)
}

// CreateTestAppWithIngestor creates a test Fiber app around a preconfigured ingestor.
func CreateTestAppWithIngestor(t *testing.T, db *gorm.DB, ingestor *visits.Ingestor, resolver geoip.Resolver) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	// Match production: browser requests must carry Sec-Fetch-Site on the tracking endpoint
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin", "none"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountRoutes(srv, internal.RouteDeps{
		Ingestor: ingestor,
		Geo:      resolver,
	})
	return srv.App()
}

package visits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"tracklet/internal/pages"
	"tracklet/internal/pkg/geoip"
	"tracklet/internal/pkg/user_agent"
	"tracklet/internal/timeframe"
	"tracklet/internal/visitors"
)

// ErrMissingURL is returned when a tracking payload has no url.
var ErrMissingURL = errors.New("url is required")

// Ingestor turns tracking payloads into persisted visits.
type Ingestor struct {
	Geo              geoip.Resolver
	Clock            timeframe.TimeProvider
	Window           time.Duration
	StrictUniqueness bool
}

// NewIngestor creates an ingestor with the system clock and the default window.
func NewIngestor(geo geoip.Resolver) *Ingestor {
	return &Ingestor{
		Geo:    geo,
		Clock:  &timeframe.DefaultTimeProvider{},
		Window: DefaultUniquenessWindow,
	}
}

func (i *Ingestor) now() time.Time {
	if i.Clock == nil {
		return time.Now().UTC().Truncate(time.Second)
	}
	return i.Clock.Now(time.UTC).Truncate(time.Second)
}

func (i *Ingestor) resolver() geoip.Resolver {
	if i.Geo == nil {
		return geoip.NopResolver{}
	}
	return i.Geo
}

// Ingest records one page view. The page is resolved or created, then the
// fingerprint, uniqueness, geography and classification are derived before
// the visit is written. Geolocation never fails the ingestion.
func (i *Ingestor) Ingest(ctx context.Context, dbManager cartridge.DBManager, logger *slog.Logger, input *TrackInput) (*Visit, error) {
	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return nil, ErrMissingURL
	}

	userAgent := input.UserAgent
	if userAgent == "" {
		userAgent = UnknownUserAgent
	}
	ipAddress := input.IPAddress
	if ipAddress == "" {
		ipAddress = UnknownIP
	}

	db := dbManager.GetConnection()
	now := i.now()

	var page *pages.Page
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		var err error
		page, err = pages.FindOrCreate(tx, rawURL, input.Title, now)
		return err
	})
	if err != nil {
		logger.Error("Failed to resolve page", slog.String("url", rawURL), slog.Any("error", err))
		return nil, fmt.Errorf("failed to resolve page: %w", err)
	}

	fingerprint := visitors.Fingerprint(ipAddress, userAgent)

	unique, err := IsUnique(db, page.ID, fingerprint, now, i.Window)
	if err != nil {
		logger.Error("Failed to evaluate visit uniqueness", slog.Any("error", err))
		return nil, err
	}

	country := i.resolver().ResolveCountry(ctx, ipAddress)
	classification := user_agent.Classify(userAgent)

	visit := &Visit{
		PageID:             page.ID,
		VisitorFingerprint: fingerprint,
		IPAddressHash:      visitors.HashIP(ipAddress),
		IPCountryCode:      country.Code,
		IPCountryName:      country.Name,
		UserAgent:          userAgent,
		Referrer:           optionalString(input.Referrer),
		ScreenResolution:   optionalString(input.ScreenResolution),
		SessionID:          optionalString(input.SessionID),
		VisitedAt:          now,
		IsBot:              classification.Bot,
		IsUnique:           unique,
		DeviceType:         classification.Device,
		Browser:            classification.Browser,
	}
	if unique && i.StrictUniqueness {
		key := UniqueKey(page.ID, fingerprint, now, i.Window)
		visit.UniqueKey = &key
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(visit).Error
	})
	if err != nil && visit.UniqueKey != nil && isUniqueViolation(err) {
		logger.Debug("Concurrent unique visit detected, storing as repeat",
			slog.Uint64("page_id", uint64(page.ID)))
		visit.ID = 0
		visit.IsUnique = false
		visit.UniqueKey = nil
		err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			return tx.Create(visit).Error
		})
	}
	if err != nil {
		logger.Error("Failed to store visit", slog.Any("error", err))
		return nil, fmt.Errorf("failed to store visit: %w", err)
	}

	logger.Debug("Visit recorded",
		slog.Uint64("visit_id", uint64(visit.ID)),
		slog.Uint64("page_id", uint64(page.ID)),
		slog.Bool("unique", visit.IsUnique),
		slog.Bool("bot", visit.IsBot))

	return visit, nil
}

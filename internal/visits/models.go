package visits

import (
	"time"

	"tracklet/internal/pages"
)

// UnknownUserAgent is recorded when the request carries no User-Agent header.
const UnknownUserAgent = "Unknown"

// UnknownIP is the fingerprinting input when no client address can be determined.
const UnknownIP = "0.0.0.0"

// Visit is a single recorded page view. Rows are written once and never
// updated; every derived field is computed at ingestion time.
type Visit struct {
	ID                 uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	PageID             uint        `gorm:"not null;index:idx_visits_page_visited,priority:1" json:"page_id"`
	Page               *pages.Page `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	VisitorFingerprint string      `gorm:"type:varchar(64);not null;index" json:"visitor_fingerprint"`
	IPAddressHash      string      `gorm:"type:varchar(64);not null" json:"-"`
	IPCountryCode      *string     `gorm:"type:varchar(2);index" json:"country_code"`
	IPCountryName      *string     `gorm:"type:varchar(100)" json:"country_name"`
	UserAgent          string      `gorm:"type:text;not null" json:"user_agent"`
	Referrer           *string     `gorm:"type:varchar(2048)" json:"referrer"`
	ScreenResolution   *string     `gorm:"type:varchar(20)" json:"screen_resolution"`
	VisitedAt          time.Time   `gorm:"not null;index;index:idx_visits_page_visited,priority:2" json:"visited_at"`
	SessionID          *string     `gorm:"type:varchar(255);index" json:"session_id"`
	IsBot              bool        `gorm:"not null;index" json:"is_bot"`
	IsUnique           bool        `gorm:"not null;index" json:"is_unique"`
	DeviceType         string      `gorm:"type:varchar(20);index" json:"device_type"`
	Browser            string      `gorm:"type:varchar(50);index" json:"browser"`
	UniqueKey          *string     `gorm:"type:varchar(64);uniqueIndex" json:"-"`
}

// TrackInput is everything the ingestion pipeline needs from one request.
type TrackInput struct {
	URL              string
	Title            string
	Referrer         string
	ScreenResolution string
	SessionID        string
	IPAddress        string
	UserAgent        string
}

// optionalString maps empty strings to NULL.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

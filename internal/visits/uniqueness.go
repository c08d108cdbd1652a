package visits

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DefaultUniquenessWindow is how long a fingerprint stays "seen" for a page.
const DefaultUniquenessWindow = 24 * time.Hour

// HasRecentVisit reports whether the fingerprint visited the page at or after since.
func HasRecentVisit(db *gorm.DB, pageID uint, fingerprint string, since time.Time) (bool, error) {
	var count int64
	err := db.Model(&Visit{}).
		Where("page_id = ? AND visitor_fingerprint = ? AND visited_at >= ?", pageID, fingerprint, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recent visits: %w", err)
	}
	return count > 0, nil
}

// IsUnique reports whether a visit at now would be the first from this
// fingerprint on this page within the trailing window. The check and the
// later insert are not atomic: concurrent ingestions may both see "unique".
func IsUnique(db *gorm.DB, pageID uint, fingerprint string, now time.Time, window time.Duration) (bool, error) {
	if window <= 0 {
		window = DefaultUniquenessWindow
	}
	recent, err := HasRecentVisit(db, pageID, fingerprint, now.Add(-window))
	if err != nil {
		return false, err
	}
	return !recent, nil
}

// UniqueKey scopes a unique visit to (page, fingerprint, window bucket).
// Buckets are aligned to the window size in UTC.
func UniqueKey(pageID uint, fingerprint string, visitedAt time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultUniquenessWindow
	}
	bucket := visitedAt.UTC().Truncate(window).Unix()
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d", pageID, fingerprint, bucket)))
	return hex.EncodeToString(hash[:])
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

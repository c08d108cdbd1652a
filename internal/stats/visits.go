package stats

import (
	"fmt"

	"gorm.io/gorm"

	"tracklet/internal/visits"
)

// VisitPage is one page of raw visits plus the size of the whole result set.
type VisitPage struct {
	Visits []visits.Visit
	Total  int64
}

// ListVisits returns visits newest first using offset pagination.
// page is 1-based; callers clamp page and limit.
func ListVisits(db *gorm.DB, q Query, page, limit int) (*VisitPage, error) {
	var total int64
	if err := scope(db, q).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}

	rows := []visits.Visit{}
	err := scope(db, q).
		Order("visited_at DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}

	return &VisitPage{Visits: rows, Total: total}, nil
}

package pages

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTitle is stored when a page is first seen without a title.
const DefaultTitle = "Untitled"

// PageNotFoundError represents an error when a page is not found
type PageNotFoundError struct {
	ID uint
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page not found: %d", e.ID)
}

// NewPageNotFoundError creates a new PageNotFoundError
func NewPageNotFoundError(id uint) *PageNotFoundError {
	return &PageNotFoundError{ID: id}
}

// Page is a tracked URL.
type Page struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	URL       string    `gorm:"type:varchar(2048);uniqueIndex;not null" json:"url"`
	Title     string    `gorm:"type:varchar(255);not null;default:'Untitled'" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is a page together with its lifetime visit count.
type Summary struct {
	ID          uint      `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	TotalVisits int64     `json:"total_visits"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FindOrCreate returns the page for url, creating it on first sight.
// The title is only applied when the page is created or when the stored
// title is still the placeholder. It accepts a transaction to be used as
// part of a larger write.
func FindOrCreate(tx *gorm.DB, url, title string, now time.Time) (*Page, error) {
	if title == "" {
		title = DefaultTitle
	}

	var page Page
	err := tx.Where("url = ?", url).First(&page).Error
	if err == nil {
		updates := map[string]interface{}{"updated_at": now}
		if page.Title == DefaultTitle && title != DefaultTitle {
			updates["title"] = title
		}
		if err := tx.Model(&page).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to touch page: %w", err)
		}
		return &page, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("unexpected error querying page: %w", err)
	}

	page = Page{URL: url, Title: title, CreatedAt: now, UpdatedAt: now}
	// A concurrent writer may have inserted the same URL first.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&page).Error; err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if page.ID == 0 {
		if err := tx.Where("url = ?", url).First(&page).Error; err != nil {
			return nil, fmt.Errorf("failed to reload page: %w", err)
		}
	}
	return &page, nil
}

// GetPage loads a page by id.
func GetPage(db *gorm.DB, id uint) (*Page, error) {
	var page Page
	if err := db.First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewPageNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying page: %w", err)
	}
	return &page, nil
}

// GetFirstPage returns the page with the lowest id.
func GetFirstPage(db *gorm.DB) (*Page, error) {
	var page Page
	if err := db.Order("id ASC").First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewPageNotFoundError(0)
		}
		return nil, fmt.Errorf("unexpected error querying page: %w", err)
	}
	return &page, nil
}

// ListWithTotals returns every page with its total visit count, newest activity first.
func ListWithTotals(db *gorm.DB) ([]Summary, error) {
	var summaries []Summary
	err := db.Raw(`
		SELECT p.id, p.url, p.title, p.created_at, p.updated_at, COUNT(v.id) AS total_visits
		FROM pages p
		LEFT JOIN visits v ON v.page_id = p.id
		GROUP BY p.id
		ORDER BY p.updated_at DESC, p.id DESC
	`).Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Package stats aggregates stored visits into dashboard metrics.
//
// Every query runs over a closed range [From, To]; callers wanting a whole
// calendar day must pass timeframe.EndOfDay as the end bound.
package stats

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tracklet/internal/pkg/async"
	"tracklet/internal/timeframe"
	"tracklet/internal/visits"
)

// MaxCountries caps the country breakdown.
const MaxCountries = 10

// Query selects the visits of one page within a date range.
type Query struct {
	PageID      uint
	From        time.Time
	To          time.Time
	ExcludeBots bool
}

// CountryCount is one row of the country breakdown.
type CountryCount struct {
	CountryCode string `json:"country_code"`
	CountryName *string `json:"country_name"`
	Visitors    int64  `json:"visitors"`
}

// TimeSeriesPoint is one non-empty bucket.
type TimeSeriesPoint struct {
	Period         string `json:"date"`
	UniqueVisitors int64  `json:"unique_visitors"`
	TotalVisits    int64  `json:"total_visits"`
}

// PageStats is the full stats payload for a page.
type PageStats struct {
	UniqueVisitors int64             `json:"unique_visitors"`
	TotalVisits    int64             `json:"total_visits"`
	Countries      []CountryCount    `json:"countries"`
	CountriesCount int               `json:"countries_count"`
	TimeSeries     []TimeSeriesPoint `json:"time_series"`
}

func scope(db *gorm.DB, q Query) *gorm.DB {
	tx := db.Model(&visits.Visit{}).
		Where("page_id = ? AND visited_at BETWEEN ? AND ?", q.PageID, q.From.UTC(), q.To.UTC())
	if q.ExcludeBots {
		tx = tx.Where("is_bot = ?", false)
	}
	return tx
}

// UniqueVisitors counts distinct fingerprints.
func UniqueVisitors(db *gorm.DB, q Query) (int64, error) {
	var count int64
	if err := scope(db, q).Select("COUNT(DISTINCT visitor_fingerprint)").Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unique visitors: %w", err)
	}
	return count, nil
}

// TotalVisits counts visits.
func TotalVisits(db *gorm.DB, q Query) (int64, error) {
	var count int64
	if err := scope(db, q).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

// VisitsByCountry groups visits with a known country, busiest first, capped
// at MaxCountries. The order of equal counts is not defined.
func VisitsByCountry(db *gorm.DB, q Query) ([]CountryCount, error) {
	rows := []CountryCount{}
	err := scope(db, q).
		Select("ip_country_code AS country_code, ip_country_name AS country_name, COUNT(id) AS visitors").
		Where("ip_country_code IS NOT NULL").
		Group("ip_country_code, ip_country_name").
		Order("visitors DESC").
		Limit(MaxCountries).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group visits by country: %w", err)
	}
	return rows, nil
}

// TimeSeries groups visits into buckets of the given size, oldest first.
// Buckets without visits are omitted.
func TimeSeries(db *gorm.DB, q Query, bucket timeframe.BucketSize) ([]TimeSeriesPoint, error) {
	points := []TimeSeriesPoint{}
	err := scope(db, q).
		Select("strftime(?, visited_at) AS period, COUNT(DISTINCT visitor_fingerprint) AS unique_visitors, COUNT(id) AS total_visits",
			bucket.DBFormat()).
		Group("period").
		Order("period ASC").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build time series: %w", err)
	}
	return points, nil
}

var pool = async.NewPool(4)

// GetPageStats runs the four aggregations concurrently. The time series uses daily buckets.
func GetPageStats(ctx context.Context, db *gorm.DB, q Query) (*PageStats, error) {
	results := pool.Execute(ctx, []async.Task{
		{Name: "unique_visitors", Execute: func(ctx context.Context) (interface{}, error) {
			return UniqueVisitors(db.WithContext(ctx), q)
		}},
		{Name: "total_visits", Execute: func(ctx context.Context) (interface{}, error) {
			return TotalVisits(db.WithContext(ctx), q)
		}},
		{Name: "countries", Execute: func(ctx context.Context) (interface{}, error) {
			return VisitsByCountry(db.WithContext(ctx), q)
		}},
		{Name: "time_series", Execute: func(ctx context.Context) (interface{}, error) {
			return TimeSeries(db.WithContext(ctx), q, timeframe.BucketSizeDay)
		}},
	})

	for _, name := range []string{"unique_visitors", "total_visits", "countries", "time_series"} {
		result, ok := results[name]
		if !ok {
			return nil, fmt.Errorf("%s: no result", name)
		}
		if result.Err != nil {
			return nil, result.Err
		}
	}

	countries := results["countries"].Data.([]CountryCount)
	return &PageStats{
		UniqueVisitors: results["unique_visitors"].Data.(int64),
		TotalVisits:    results["total_visits"].Data.(int64),
		Countries:      countries,
		CountriesCount: len(countries),
		TimeSeries:     results["time_series"].Data.([]TimeSeriesPoint),
	}, nil
}

package timeframe

import (
	"time"
)

// BucketSize is the granularity of a time series.
type BucketSize string

const (
	BucketSizeHour  BucketSize = "hour"
	BucketSizeDay   BucketSize = "day"
	BucketSizeMonth BucketSize = "month"
)

// SQLite strftime layouts for each bucket size.
const (
	HourlyDBFormat  = "%Y-%m-%d %H:00:00"
	DailyDBFormat   = "%Y-%m-%d"
	MonthlyDBFormat = "%Y-%m"
)

// ParseBucketSize maps a user supplied interval to a bucket size.
// Anything unrecognised is treated as day.
func ParseBucketSize(interval string) BucketSize {
	switch BucketSize(interval) {
	case BucketSizeHour:
		return BucketSizeHour
	case BucketSizeMonth:
		return BucketSizeMonth
	default:
		return BucketSizeDay
	}
}

// DBFormat returns the strftime layout used to group rows into buckets.
func (b BucketSize) DBFormat() string {
	switch b {
	case BucketSizeHour:
		return HourlyDBFormat
	case BucketSizeMonth:
		return MonthlyDBFormat
	default:
		return DailyDBFormat
	}
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct {
	Time time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.Time.In(loc)
}

// DateRange is a closed interval [From, To] in UTC.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

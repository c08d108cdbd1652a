package timeframe

import (
	"time"
)

// DefaultLookback is how far back a range starts when no start date is given.
const DefaultLookback = 30 * 24 * time.Hour

const dateLayout = "2006-01-02"

type DateRangeParser struct {
	timeProvider TimeProvider
}

func NewDateRangeParser(timeProvider ...TimeProvider) *DateRangeParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &DateRangeParser{
		timeProvider: provider,
	}
}

// Parse builds a range from optional YYYY-MM-DD strings. The start date is
// taken at 00:00:00 UTC. The end date always covers its whole day, up to the
// last nanosecond of 23:59:59 UTC. Empty or unparsable values fall back to now minus the default
// lookback for the start and now for the end.
func (p *DateRangeParser) Parse(startDate, endDate string) DateRange {
	now := p.timeProvider.Now(time.UTC)

	from := parseDateWithDefault(startDate, now.Add(-DefaultLookback))
	to := parseDateWithDefault(endDate, now)
	to = EndOfDay(to)

	return DateRange{From: from, To: to}
}

func parseDateWithDefault(dateStr string, defaultDate time.Time) time.Time {
	if dateStr == "" {
		return defaultDate
	}

	date, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		return defaultDate
	}
	return date
}

// EndOfDay returns the last representable instant of t's UTC calendar day.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

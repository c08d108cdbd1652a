package http

import (
	"strings"

	"github.com/karloscodes/cartridge"

	"tracklet/internal/stats"
	"tracklet/internal/timeframe"
)

// Clock used for default date ranges. Tests replace it with a fixed provider.
var Clock timeframe.TimeProvider = &timeframe.DefaultTimeProvider{}

// parseExcludeBots reads a boolean flag. Unknown values keep the default of true.
func parseExcludeBots(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// statsQuery builds the aggregation query for pageID from start_date, end_date and exclude_bots.
func statsQuery(ctx *cartridge.Context, pageID uint) stats.Query {
	dateRange := timeframe.NewDateRangeParser(Clock).Parse(ctx.Query("start_date"), ctx.Query("end_date"))
	return stats.Query{
		PageID:      pageID,
		From:        dateRange.From,
		To:          dateRange.To,
		ExcludeBots: parseExcludeBots(ctx.Query("exclude_bots")),
	}
}

// pageIDParam returns the :id route parameter, or 0 when it is not a positive integer.
func pageIDParam(ctx *cartridge.Context) uint {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0
	}
	return uint(id)
}

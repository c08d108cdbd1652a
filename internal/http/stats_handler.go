package http

import (
	"errors"

	"github.com/karloscodes/cartridge"

	"tracklet/internal/pages"
	"tracklet/internal/stats"
)

const errNoPagesTracked = "No pages tracked yet"

// PageStatsAction returns the aggregate stats of one page.
func PageStatsAction(ctx *cartridge.Context) error {
	return renderPageStats(ctx, pageIDParam(ctx), "Failed to fetch page statistics")
}

// StatsIndexAction serves stats for ?page_id, or for the first tracked page when it is absent.
func StatsIndexAction(ctx *cartridge.Context) error {
	if requested := ctx.QueryInt("page_id", 0); requested > 0 {
		return renderPageStats(ctx, uint(requested), "Failed to fetch page statistics")
	}

	first, err := pages.GetFirstPage(ctx.DB())
	if err != nil {
		var notFoundErr *pages.PageNotFoundError
		if errors.As(err, &notFoundErr) {
			return notFound(ctx, errNoPagesTracked)
		}
		return respondError(ctx, err, "Failed to fetch statistics")
	}
	return renderPageStats(ctx, first.ID, "Failed to fetch page statistics")
}

func renderPageStats(ctx *cartridge.Context, pageID uint, failure string) error {
	db := ctx.DB()
	if pageID == 0 {
		return notFound(ctx, errPageNotFound)
	}
	if _, err := pages.GetPage(db, pageID); err != nil {
		return respondError(ctx, err, failure)
	}

	result, err := stats.GetPageStats(ctx.UserContext(), db, statsQuery(ctx, pageID))
	if err != nil {
		return respondError(ctx, err, failure)
	}
	return ctx.JSON(result)
}

package http

import (
	"github.com/karloscodes/cartridge"

	"tracklet/internal/pages"
)

// PagesIndexAction lists every tracked page with its lifetime visit count.
func PagesIndexAction(ctx *cartridge.Context) error {
	summaries, err := pages.ListWithTotals(ctx.DB())
	if err != nil {
		return respondError(ctx, err, "Failed to fetch pages")
	}
	return ctx.JSON(summaries)
}

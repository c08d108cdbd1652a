package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/samber/lo"

	"tracklet/internal/pages"
	"tracklet/internal/stats"
	"tracklet/internal/visitors"
	"tracklet/internal/visits"
)

const (
	defaultVisitsLimit = 50
	maxVisitsLimit     = 100
)

type PaginationData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// VisitRow is a visit as shown in the dashboard history table.
type VisitRow struct {
	ID          uint    `json:"id"`
	VisitedAt   string  `json:"visited_at"`
	CountryCode *string `json:"country_code"`
	CountryName *string `json:"country_name"`
	Referrer    *string `json:"referrer"`
	IsBot       bool    `json:"is_bot"`
	IsUnique    bool    `json:"is_unique"`
	UserAgent   string  `json:"user_agent"`
	DeviceType  string  `json:"device_type"`
	Browser     string  `json:"browser"`
	Visitor     string  `json:"visitor"`
}

type VisitsResponse struct {
	Success    bool           `json:"success"`
	Data       []VisitRow     `json:"data"`
	Pagination PaginationData `json:"pagination"`
}

// PageVisitsAction returns a page of raw visits, newest first.
func PageVisitsAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	pageID := pageIDParam(ctx)
	if pageID == 0 {
		return notFound(ctx, errPageNotFound)
	}
	if _, err := pages.GetPage(db, pageID); err != nil {
		return respondError(ctx, err, "Failed to fetch visits")
	}

	pageNum := lo.Max([]int{ctx.QueryInt("page", 1), 1})
	limit := lo.Clamp(ctx.QueryInt("limit", defaultVisitsLimit), 1, maxVisitsLimit)

	result, err := stats.ListVisits(db, statsQuery(ctx, pageID), pageNum, limit)
	if err != nil {
		return respondError(ctx, err, "Failed to fetch visits")
	}

	rows := lo.Map(result.Visits, func(v visits.Visit, _ int) VisitRow {
		return VisitRow{
			ID:          v.ID,
			VisitedAt:   v.VisitedAt.UTC().Format(time.RFC3339),
			CountryCode: v.IPCountryCode,
			CountryName: v.IPCountryName,
			Referrer:    v.Referrer,
			IsBot:       v.IsBot,
			IsUnique:    v.IsUnique,
			UserAgent:   v.UserAgent,
			DeviceType:  v.DeviceType,
			Browser:     v.Browser,
			Visitor:     visitors.ShortID(v.VisitorFingerprint),
		}
	})

	return ctx.Status(fiber.StatusOK).JSON(VisitsResponse{
		Success: true,
		Data:    rows,
		Pagination: PaginationData{
			Page:       pageNum,
			Limit:      limit,
			Total:      result.Total,
			TotalPages: int((result.Total + int64(limit) - 1) / int64(limit)),
		},
	})
}

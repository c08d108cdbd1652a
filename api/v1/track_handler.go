package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"tracklet/internal/visits"
)

const (
	msgSuccess       = "success"
	errInvalidData   = "Invalid data"
	errRecordFailure = "Failed to record visit"
)

// TrackVisitParams is the payload posted by tracker.js.
type TrackVisitParams struct {
	URL              string `json:"url"`
	Title            string `json:"title"`
	Referrer         string `json:"referrer"`
	SessionID        string `json:"session_id"`
	ScreenResolution string `json:"screen_resolution"`
}

// TrackVisitHandler records a page view for the posted payload.
func TrackVisitHandler(ingestor *visits.Ingestor) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		var params TrackVisitParams
		if err := json.Unmarshal(ctx.Body(), &params); err != nil {
			ctx.Logger.Debug("Invalid tracking payload", slog.Any("error", err))
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidData})
		}

		input := &visits.TrackInput{
			URL:              params.URL,
			Title:            params.Title,
			Referrer:         params.Referrer,
			ScreenResolution: params.ScreenResolution,
			SessionID:        params.SessionID,
			IPAddress:        getClientIP(ctx.Ctx),
			UserAgent:        ctx.Get(fiber.HeaderUserAgent),
		}

		visit, err := ingestor.Ingest(ctx.UserContext(), ctx.DBManager, ctx.Logger, input)
		if err != nil {
			if errors.Is(err, visits.ErrMissingURL) {
				return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidData})
			}
			ctx.Logger.Error("Failed to record visit",
				slog.String("url", params.URL),
				slog.Any("error", err))
			return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": errRecordFailure})
		}

		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status": msgSuccess,
			"id":     visit.ID,
		})
	}
}

// TrackPreflightHandler answers CORS preflight requests for the tracking endpoint.
func TrackPreflightHandler(ctx *cartridge.Context) error {
	return ctx.SendStatus(http.StatusNoContent)
}

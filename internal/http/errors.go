package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"tracklet/internal/pages"
)

const errPageNotFound = "Page not found"

func notFound(ctx *cartridge.Context, message string) error {
	return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// respondError maps a lookup or query failure onto the dashboard error shape.
func respondError(ctx *cartridge.Context, err error, message string) error {
	var notFoundErr *pages.PageNotFoundError
	if errors.As(err, &notFoundErr) {
		return notFound(ctx, errPageNotFound)
	}

	ctx.Logger.Error(message, slog.String("path", ctx.Path()), slog.Any("error", err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"message": err.Error(),
	})
}

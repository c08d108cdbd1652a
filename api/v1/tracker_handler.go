package v1

import (
	"bytes"
	_ "embed"
	"log/slog"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

//go:embed tracker.js
var trackerSource string

var trackerTemplate = template.Must(template.New("tracker.js").Parse(trackerSource))

// GetTrackerScriptAction serves the embeddable tracker bound to this server's base URL.
func GetTrackerScriptAction(ctx *cartridge.Context) error {
	var buf bytes.Buffer
	data := map[string]string{
		"BaseURL": ctx.BaseURL(),
	}
	if err := trackerTemplate.Execute(&buf, data); err != nil {
		ctx.Logger.Error("Failed to render tracker script", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	content := buf.Bytes()
	etag := generateETag(content)

	if ctx.Get(fiber.HeaderIfNoneMatch) == etag {
		ctx.Logger.Debug("ETag match, returning 304",
			slog.String("etag", etag),
			slog.String("path", ctx.Path()))
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set(fiber.HeaderContentType, "application/javascript")
	ctx.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	ctx.Set(fiber.HeaderETag, etag)
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return ctx.Send(content)
}

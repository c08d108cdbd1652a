package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"tracklet/internal/pkg/geoip"
)

const defaultDebugIP = "8.8.8.8"

// GeoIPDebugAction resolves ?ip (default 8.8.8.8) through the configured provider.
func GeoIPDebugAction(resolver geoip.Resolver) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		ip := ctx.Query("ip", defaultDebugIP)
		country := resolver.ResolveCountry(ctx.UserContext(), ip)

		return ctx.JSON(fiber.Map{
			"ip": ip,
			"result": fiber.Map{
				"code": country.Code,
				"name": country.Name,
			},
			"client_ip": ctx.IP(),
		})
	}
}

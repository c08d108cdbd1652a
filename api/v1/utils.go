package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tracklet/internal/visits"
)

// getClientIP returns the first X-Forwarded-For entry, else the peer address.
func getClientIP(c *fiber.Ctx) string {
	return selectClientIP(c.Get(fiber.HeaderXForwardedFor), c.Context().RemoteAddr().String())
}

func selectClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if clean := normalizeIP(first); clean != "" {
			return clean
		}
		if first != "" {
			return first
		}
	}

	if clean := normalizeIP(remoteAddr); clean != "" {
		return clean
	}

	return visits.UnknownIP
}

// normalizeIP strips quotes, ports, brackets and zones. It returns "" when raw is not an address.
func normalizeIP(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"")
	if clean == "" {
		return ""
	}

	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return addrPort.Addr().Unmap().String()
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return addr.Unmap().String()
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return normalizeIP(host)
	}

	return ""
}

// generateETag creates a strong ETag from content using SHA-256
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

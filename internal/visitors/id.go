package visitors

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortIDLength is how much of a fingerprint the dashboard shows.
const shortIDLength = 12

// Fingerprint derives the visitor identity from the client IP and user agent.
// Two clients behind the same NAT with the same browser collapse into one visitor.
func Fingerprint(ipAddress, userAgent string) string {
	hash := sha256.Sum256([]byte(ipAddress + userAgent))
	return hex.EncodeToString(hash[:])
}

// HashIP returns the SHA-256 hex digest stored in place of the raw address.
func HashIP(ipAddress string) string {
	hash := sha256.Sum256([]byte(ipAddress))
	return hex.EncodeToString(hash[:])
}

// ShortID truncates a fingerprint for display in visit listings.
func ShortID(fingerprint string) string {
	if len(fingerprint) <= shortIDLength {
		return fingerprint
	}
	return fingerprint[:shortIDLength]
}

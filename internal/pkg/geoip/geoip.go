// Package geoip resolves client IP addresses to countries.
//
// Resolution is best-effort: every provider returns a Country whose fields
// are nil when the address is private, the upstream fails or the lookup
// times out. ResolveCountry never reports an error; Lookup does, so the
// cache can tell a definite answer from a failed one.
package geoip

import (
	"context"
	"net/netip"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Country is the geographic enrichment stored on a visit.
type Country struct {
	Code *string `json:"code"`
	Name *string `json:"name"`
}

// Resolved reports whether a country code was found.
func (c Country) Resolved() bool {
	return c.Code != nil
}

// Resolver looks up the country for an IP address.
type Resolver interface {
	ResolveCountry(ctx context.Context, ip string) Country
}

// Lookuper is implemented by resolvers that can tell a definite answer,
// including "no country", apart from a failed lookup.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (Country, error)
}

// NopResolver never resolves anything. Used when geolocation is disabled.
type NopResolver struct{}

func (NopResolver) ResolveCountry(context.Context, string) Country {
	return Country{}
}

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// IsPrivateIP reports whether the address must not be sent to a geolocation
// provider. Unparsable input counts as private.
func IsPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return true
	}
	addr = addr.Unmap()

	if addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return true
	}

	if addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
		return true
	}

	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

var codeCaser = cases.Upper(language.AmericanEnglish)

// newCountry normalises provider output. Empty values become nil independently.
func newCountry(code, name string) Country {
	var country Country
	if code = strings.TrimSpace(code); code != "" {
		upper := codeCaser.String(code)
		country.Code = &upper
	}
	if name = strings.TrimSpace(name); name != "" {
		country.Name = &name
	}
	return country
}

package user_agent

import (
	"sync"

	"go.elara.ws/pcre"
)

// Device types
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// BrowserUnknown is reported when no browser rule matches.
const BrowserUnknown = "Unknown"

// Classification is the outcome of inspecting a single user agent.
type Classification struct {
	Device  string
	Browser string
	Bot     bool
}

// rule maps a case-insensitive pattern to a label. Rules are evaluated in
// order and the first match wins.
type rule struct {
	Pattern string
	Label   string
}

var deviceRules = []rule{
	{Pattern: `mobile|android|iphone`, Label: DeviceMobile},
	{Pattern: `tablet|ipad`, Label: DeviceTablet},
}

// Chrome is checked before Edge, so Chromium-based Edge reports as Chrome.
var browserRules = []rule{
	{Pattern: `chrome`, Label: "Chrome"},
	{Pattern: `firefox`, Label: "Firefox"},
	{Pattern: `safari`, Label: "Safari"},
	{Pattern: `edge`, Label: "Edge"},
}

var botPattern = `bot|crawler|spider|scraper|headless|curl|wget|python`

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(`(?i)` + pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var cache = newRegexCache()

// matches reports whether the pattern occurs anywhere in the user agent.
// A pattern that fails to compile never matches.
func matches(pattern, userAgent string) bool {
	regex, err := cache.get(pattern)
	if err != nil {
		return false
	}
	return regex.MatchString(userAgent)
}

func firstMatch(rules []rule, userAgent, fallback string) string {
	for _, r := range rules {
		if matches(r.Pattern, userAgent) {
			return r.Label
		}
	}
	return fallback
}

// DetectDevice returns mobile, tablet or desktop.
func DetectDevice(userAgent string) string {
	return firstMatch(deviceRules, userAgent, DeviceDesktop)
}

// DetectBrowser returns the browser family name, or Unknown.
func DetectBrowser(userAgent string) string {
	return firstMatch(browserRules, userAgent, BrowserUnknown)
}

// IsBot reports whether the user agent looks automated.
func IsBot(userAgent string) bool {
	return matches(botPattern, userAgent)
}

// Classify runs every detector against the user agent.
func Classify(userAgent string) Classification {
	return Classification{
		Device:  DetectDevice(userAgent),
		Browser: DetectBrowser(userAgent),
		Bot:     IsBot(userAgent),
	}
}

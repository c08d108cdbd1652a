package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tracklet/internal/pkg/user_agent"
)

const (
	chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
	chromeAndroid = "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36"
	firefoxMac    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/118.0"
	safariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15"
	edgeChromium  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36 Edg/118.0.2088.46"
	legacyEdge    = "Mozilla/5.0 (Windows NT 10.0) Edge/12.10136"
	ipadTablet    = "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Safari/604.1"
)

func TestDetectDevice(t *testing.T) {
	testCases := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"Chrome on Windows", chromeWindows, user_agent.DeviceDesktop},
		{"Safari on iPhone", safariIPhone, user_agent.DeviceMobile},
		{"Chrome on Android", chromeAndroid, user_agent.DeviceMobile},
		{"Safari on iPad", ipadTablet, user_agent.DeviceTablet},
		{"generic tablet", "SomeVendor Tablet Browser", user_agent.DeviceTablet},
		{"empty", "", user_agent.DeviceDesktop},
		{"mixed case", "MOBILE agent", user_agent.DeviceMobile},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, user_agent.DetectDevice(tc.userAgent))
		})
	}
}

func TestDetectBrowser(t *testing.T) {
	testCases := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"Chrome", chromeWindows, "Chrome"},
		{"Chromium Edge reports Chrome", edgeChromium, "Chrome"},
		{"Legacy Edge", legacyEdge, "Edge"},
		{"Firefox", firefoxMac, "Firefox"},
		{"Safari", safariMac, "Safari"},
		{"Mobile Safari", safariIPhone, "Safari"},
		{"Unknown", "SomethingElse/1.0", user_agent.BrowserUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, user_agent.DetectBrowser(tc.userAgent))
		})
	}
}

func TestIsBot(t *testing.T) {
	bots := []string{
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"python-requests/2.31",
		"curl/8.4.0",
		"Wget/1.21",
		"Mozilla/5.0 HeadlessChrome/118.0",
		"SomeCrawler/1.0",
		"friendly-spider",
		"web scraper",
	}
	for _, ua := range bots {
		assert.True(t, user_agent.IsBot(ua), "expected bot: %s", ua)
	}

	humans := []string{chromeWindows, safariIPhone, firefoxMac, "Unknown"}
	for _, ua := range humans {
		assert.False(t, user_agent.IsBot(ua), "expected human: %s", ua)
	}
}

func TestClassify(t *testing.T) {
	result := user_agent.Classify("python-requests/2.31")
	assert.True(t, result.Bot)
	assert.Equal(t, user_agent.DeviceDesktop, result.Device)
	assert.Equal(t, user_agent.BrowserUnknown, result.Browser)

	result = user_agent.Classify(chromeAndroid)
	assert.False(t, result.Bot)
	assert.Equal(t, user_agent.DeviceMobile, result.Device)
	assert.Equal(t, "Chrome", result.Browser)
}

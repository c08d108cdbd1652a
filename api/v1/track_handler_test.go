// Package v1_test contains tests for the public tracking API
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tracklet/internal/pages"
	"tracklet/internal/pkg/geoip"
	"tracklet/internal/testsupport"
	"tracklet/internal/visitors"
	"tracklet/internal/visits"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func newResolver() *testsupport.StubResolver {
	return &testsupport.StubResolver{Countries: map[string]geoip.Country{
		"8.8.8.8": testsupport.Country("US", "United States"),
	}}
}

func trackRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/track", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoErrorf(t, json.Unmarshal(body, &out), "body: %s", string(body))
	return out
}

func countVisits(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&visits.Visit{}).Count(&count).Error)
	return count
}

func TestTrackVisitHandler(t *testing.T) {
	t.Run("records a visit", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateTestApp(t, db, newResolver())

		payload, err := json.Marshal(map[string]string{
			"url":               "https://example.com/pricing",
			"title":             "Pricing",
			"referrer":          "https://google.com",
			"session_id":        "session_1",
			"screen_resolution": "1920x1080",
		})
		require.NoError(t, err)

		req := trackRequest(string(payload))
		req.Header.Set("X-Forwarded-For", " 8.8.8.8 , 10.0.0.1")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "success", body["status"])
		id, ok := body["id"].(float64)
		require.True(t, ok, "id should be numeric")

		var stored visits.Visit
		require.NoError(t, db.First(&stored, uint(id)).Error)
		assert.Equal(t, visitors.HashIP("8.8.8.8"), stored.IPAddressHash)
		assert.Equal(t, visitors.Fingerprint("8.8.8.8", chromeUA), stored.VisitorFingerprint)
		require.NotNil(t, stored.IPCountryCode)
		assert.Equal(t, "US", *stored.IPCountryCode)
		assert.Equal(t, "session_1", *stored.SessionID)
		assert.Equal(t, "1920x1080", *stored.ScreenResolution)
		assert.True(t, stored.IsUnique)

		page, err := pages.GetPage(db, stored.PageID)
		require.NoError(t, err)
		assert.Equal(t, "Pricing", page.Title)
	})

	t.Run("missing url is rejected", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		resolver := newResolver()
		app := testsupport.CreateTestApp(t, db, resolver)

		resp, err := app.Test(trackRequest(`{"title":"No URL"}`), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid data", decodeBody(t, resp)["error"])

		assert.Zero(t, countVisits(t, db))
		assert.Zero(t, resolver.Calls())
	})

	t.Run("invalid json is rejected", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateTestApp(t, db, newResolver())

		resp, err := app.Test(trackRequest(`{"url": "https://example.com/"`), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid data", decodeBody(t, resp)["error"])
		assert.Zero(t, countVisits(t, db))
	})

	t.Run("missing user agent is stored as Unknown", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateTestApp(t, db, newResolver())

		req := trackRequest(`{"url":"https://example.com/"}`)
		req.Header.Set("User-Agent", "")
		req.Header.Set("X-Forwarded-For", "203.0.113.9")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var stored visits.Visit
		require.NoError(t, db.First(&stored).Error)
		assert.Equal(t, visits.UnknownUserAgent, stored.UserAgent)
		assert.Nil(t, stored.IPCountryCode)
		assert.Nil(t, stored.Referrer)
	})

	t.Run("repeat visit within the window is not unique", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateTestApp(t, db, newResolver())

		for i := 0; i < 2; i++ {
			req := trackRequest(`{"url":"https://example.com/"}`)
			req.Header.Set("X-Forwarded-For", "8.8.8.8")
			resp, err := app.Test(req, 30000)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		var rows []visits.Visit
		require.NoError(t, db.Order("id ASC").Find(&rows).Error)
		require.Len(t, rows, 2)
		assert.True(t, rows[0].IsUnique)
		assert.False(t, rows[1].IsUnique)
	})
}

func TestTrackPreflight(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateTestApp(t, dbManager.GetConnection(), newResolver())

	req := httptest.NewRequest(http.MethodOptions, "/api/track", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

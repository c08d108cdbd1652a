package v1_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklet/internal/testsupport"
)

func TestGetTrackerScriptAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateTestApp(t, dbManager.GetConnection(), newResolver())

	req := httptest.NewRequest(http.MethodGet, "/tracker.js", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http://example.com/api/track")
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/javascript")
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	t.Run("matching etag returns 304", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tracker.js", nil)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		req.Header.Set("If-None-Match", etag)

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("stale etag gets the script", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tracker.js", nil)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		req.Header.Set("If-None-Match", `"stale"`)

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

package geoip_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklet/internal/config"
	"tracklet/internal/pkg/geoip"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// upstream returns an ip-api compatible server and a counter of requests it served.
func upstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (string, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/json/", &hits
}

func TestIsPrivateIP(t *testing.T) {
	testCases := []struct {
		ip       string
		expected bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.5.4", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"0.0.0.0", true},
		{"100.64.0.1", true},
		{"198.51.100.10", true},
		{"203.0.113.5", true},
		{"255.255.255.255", true},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"2001:db8::1", true},
		{"not-an-ip", true},
		{"", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"2001:4860:4860::8888", false},
		{"::ffff:8.8.8.8", false},
	}

	for _, tc := range testCases {
		t.Run(tc.ip, func(t *testing.T) {
			assert.Equal(t, tc.expected, geoip.IsPrivateIP(tc.ip))
		})
	}
}

func TestIPAPIResolver(t *testing.T) {
	t.Run("resolves a public address", func(t *testing.T) {
		var requestedPath string
		baseURL, hits := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.Path
			fmt.Fprint(w, `{"status":"success","country":"United States","countryCode":"US"}`)
		})

		resolver := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
		country := resolver.ResolveCountry(context.Background(), "8.8.8.8")

		require.True(t, country.Resolved())
		assert.Equal(t, "US", *country.Code)
		assert.Equal(t, "United States", *country.Name)
		assert.Equal(t, "/json/8.8.8.8", requestedPath)
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("never calls upstream for private addresses", func(t *testing.T) {
		baseURL, hits := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"success","country":"United States","countryCode":"US"}`)
		})

		resolver := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
		for _, ip := range []string{"127.0.0.1", "10.0.0.1", "192.168.0.10", "::1"} {
			country := resolver.ResolveCountry(context.Background(), ip)
			assert.Nil(t, country.Code)
			assert.Nil(t, country.Name)
		}
		assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	})

	t.Run("returns nulls on a failed status", func(t *testing.T) {
		baseURL, _ := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"fail","message":"reserved range"}`)
		})

		resolver := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
		country := resolver.ResolveCountry(context.Background(), "8.8.8.8")

		assert.Nil(t, country.Code)
		assert.Nil(t, country.Name)
	})

	t.Run("treats missing fields independently", func(t *testing.T) {
		baseURL, _ := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"success","countryCode":"de"}`)
		})

		resolver := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
		country := resolver.ResolveCountry(context.Background(), "8.8.8.8")

		require.NotNil(t, country.Code)
		assert.Equal(t, "DE", *country.Code)
		assert.Nil(t, country.Name)
	})

	t.Run("returns nulls on server errors", func(t *testing.T) {
		baseURL, _ := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		resolver := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
		assert.False(t, resolver.ResolveCountry(context.Background(), "8.8.8.8").Resolved())
	})

	t.Run("returns nulls on malformed bodies", func(t *testing.T) {
		baseURL, _ := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>rate limited</html>`)
		})

		resolver := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
		assert.False(t, resolver.ResolveCountry(context.Background(), "8.8.8.8").Resolved())
	})

	t.Run("gives up after the timeout", func(t *testing.T) {
		baseURL, _ := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		})

		resolver := geoip.NewIPAPIResolver(baseURL, 50*time.Millisecond, testLogger())
		start := time.Now()
		country := resolver.ResolveCountry(context.Background(), "8.8.8.8")

		assert.False(t, country.Resolved())
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestCachedResolver(t *testing.T) {
	baseURL, hits := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		ip := strings.TrimPrefix(r.URL.Path, "/json/")
		if ip == "1.1.1.1" {
			fmt.Fprint(w, `{"status":"success","country":"Australia","countryCode":"AU"}`)
			return
		}
		fmt.Fprint(w, `{"status":"success","country":"United States","countryCode":"US"}`)
	})

	inner := geoip.NewIPAPIResolver(baseURL, time.Second, testLogger())
	resolver := geoip.NewCachedResolver(inner, time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		country := resolver.ResolveCountry(context.Background(), "8.8.8.8")
		require.True(t, country.Resolved())
		assert.Equal(t, "US", *country.Code)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "upstream should be hit once per IP")

	country := resolver.ResolveCountry(context.Background(), "1.1.1.1")
	require.True(t, country.Resolved())
	assert.Equal(t, "AU", *country.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	resolver.ResolveCountry(context.Background(), "127.0.0.1")
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestCachedResolverOnlyKeepsDefiniteAnswers(t *testing.T) {
	t.Run("a transient upstream error is retried", func(t *testing.T) {
		var failNext int32 = 1
		baseURL, hits := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.CompareAndSwapInt32(&failNext, 1, 0) {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, `{"status":"success","country":"United States","countryCode":"US"}`)
		})

		resolver := geoip.NewCachedResolver(geoip.NewIPAPIResolver(baseURL, time.Second, testLogger()), time.Hour, testLogger())

		assert.False(t, resolver.ResolveCountry(context.Background(), "8.8.8.8").Resolved())

		country := resolver.ResolveCountry(context.Background(), "8.8.8.8")
		require.True(t, country.Resolved())
		assert.Equal(t, "US", *country.Code)

		resolver.ResolveCountry(context.Background(), "8.8.8.8")
		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	})

	t.Run("a failed status is cached", func(t *testing.T) {
		baseURL, hits := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"fail","message":"reserved range"}`)
		})

		resolver := geoip.NewCachedResolver(geoip.NewIPAPIResolver(baseURL, time.Second, testLogger()), time.Hour, testLogger())
		for i := 0; i < 3; i++ {
			assert.False(t, resolver.ResolveCountry(context.Background(), "8.8.8.8").Resolved())
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("the caller context reaches the upstream", func(t *testing.T) {
		baseURL, _ := upstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"success","country":"United States","countryCode":"US"}`)
		})

		resolver := geoip.NewCachedResolver(geoip.NewIPAPIResolver(baseURL, time.Second, testLogger()), time.Hour, testLogger())

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, resolver.ResolveCountry(cancelled, "8.8.8.8").Resolved())

		assert.True(t, resolver.ResolveCountry(context.Background(), "8.8.8.8").Resolved())
	})
}

func TestGeoLiteResolverWithoutDatabase(t *testing.T) {
	resolver, err := geoip.NewGeoLiteResolver(t.TempDir()+"/missing.mmdb", testLogger())
	require.NoError(t, err)
	defer resolver.Close()

	assert.False(t, resolver.Loaded())
	assert.False(t, resolver.ResolveCountry(context.Background(), "8.8.8.8").Resolved())

	_, err = resolver.Lookup(context.Background(), "8.8.8.8")
	assert.Error(t, err, "an unloaded database is not a definite answer")

	country, err := resolver.Lookup(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, country.Resolved())
}

func TestNewResolver(t *testing.T) {
	t.Run("none disables lookups", func(t *testing.T) {
		cfg := &config.Config{GeoProvider: config.GeoProviderNone}
		resolver, geolite, err := geoip.NewResolver(cfg, testLogger())
		require.NoError(t, err)

		assert.IsType(t, geoip.NopResolver{}, resolver)
		assert.Nil(t, geolite)
	})

	t.Run("ipapi is wrapped in a cache", func(t *testing.T) {
		cfg := &config.Config{
			GeoProvider:        config.GeoProviderIPAPI,
			GeoAPIURL:          "http://127.0.0.1:1/json/",
			GeoCacheTTLMinutes: 10,
		}
		resolver, geolite, err := geoip.NewResolver(cfg, testLogger())
		require.NoError(t, err)

		assert.IsType(t, &geoip.CachedResolver{}, resolver)
		assert.Nil(t, geolite)
	})

	t.Run("geolite is exposed for reloads", func(t *testing.T) {
		cfg := &config.Config{
			GeoProvider: config.GeoProviderGeoLite,
			GeoDBPath:   t.TempDir() + "/GeoLite2-Country.mmdb",
		}
		resolver, geolite, err := geoip.NewResolver(cfg, testLogger())
		require.NoError(t, err)

		require.NotNil(t, geolite)
		assert.IsType(t, &geoip.GeoLiteResolver{}, resolver)
	})
}

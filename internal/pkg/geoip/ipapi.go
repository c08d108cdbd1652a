package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultIPAPIURL is the ip-api.com JSON endpoint; the IP is appended to it.
const DefaultIPAPIURL = "http://ip-api.com/json/"

// DefaultTimeout bounds a single upstream lookup.
const DefaultTimeout = 5 * time.Second

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// IPAPIResolver queries an ip-api.com compatible HTTP service.
type IPAPIResolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewIPAPIResolver creates a resolver for baseURL. A zero timeout uses DefaultTimeout.
func NewIPAPIResolver(baseURL string, timeout time.Duration, logger *slog.Logger) *IPAPIResolver {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IPAPIResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ResolveCountry implements Resolver.
func (r *IPAPIResolver) ResolveCountry(ctx context.Context, ip string) Country {
	if IsPrivateIP(ip) {
		return Country{}
	}

	country, err := r.Lookup(ctx, ip)
	if err != nil {
		r.logger.Warn("Geolocation lookup failed",
			slog.String("provider", "ipapi"),
			slog.Any("error", err))
		return Country{}
	}
	return country
}

// Lookup implements Lookuper. A "fail" status is a definite empty answer;
// transport, status code and decoding problems are returned as errors.
func (r *IPAPIResolver) Lookup(ctx context.Context, ip string) (Country, error) {
	if IsPrivateIP(ip) {
		return Country{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+url.PathEscape(ip), nil)
	if err != nil {
		return Country{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Country{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Country{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Country{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Status != "success" {
		r.logger.Debug("Geolocation provider returned no result",
			slog.String("status", body.Status),
			slog.String("message", body.Message))
		return Country{}, nil
	}

	return newCountry(body.CountryCode, body.Country), nil
}

// main.go - Load testing tool for the tracking endpoint
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	v1 "tracklet/api/v1"
)

// PerfConfig holds the configuration for the performance test
type PerfConfig struct {
	BaseURL      string
	Origin       string
	Concurrency  int
	Duration     time.Duration
	VisitsPerSec int
	Visitors     int
	Timeout      time.Duration
}

// Result captures the result of a single request
type Result struct {
	Duration   time.Duration
	StatusCode int
	Error      error
}

// PerfStats holds statistics about the performance test
type PerfStats struct {
	mu            sync.Mutex
	Total         int64
	Successful    int64
	Failed        int64
	StatusCodes   map[int]int64
	ResponseTimes []time.Duration
	StartTime     time.Time
	EndTime       time.Time
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the tracker server")
	origin := flag.String("origin", "https://example.com", "Origin header sent with every request")
	concurrency := flag.Int("c", 10, "Number of concurrent clients")
	duration := flag.Duration("d", 30*time.Second, "Duration of the test")
	rate := flag.Int("rate", 0, "Target visits per second (0 = unlimited)")
	visitorCount := flag.Int("visitors", 500, "Size of the simulated visitor pool")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := &PerfConfig{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		Origin:       *origin,
		Concurrency:  *concurrency,
		Duration:     *duration,
		VisitsPerSec: *rate,
		Visitors:     max(*visitorCount, 1),
		Timeout:      *timeout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	testCtx, testCancel := context.WithTimeout(ctx, cfg.Duration)
	defer testCancel()

	logger.Info("Starting load test",
		slog.String("target", cfg.BaseURL+"/api/track"),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("duration", cfg.Duration),
		slog.Int("rate", cfg.VisitsPerSec))

	stats := &PerfStats{StatusCodes: make(map[int]int64), StartTime: time.Now()}
	for result := range runTest(testCtx, cfg, newVisitorPool(cfg.Visitors)) {
		stats.record(result)
	}
	stats.EndTime = time.Now()

	printResults(stats)
}

type simulatedVisitor struct {
	ip        string
	userAgent string
}

func newVisitorPool(size int) []simulatedVisitor {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:90.0) Gecko/20100101 Firefox/90.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
	}

	pool := make([]simulatedVisitor, size)
	for i := range pool {
		pool[i] = simulatedVisitor{
			ip:        fmt.Sprintf("%d.%d.%d.%d", rand.IntN(223)+1, rand.IntN(256), rand.IntN(256), rand.IntN(254)+1),
			userAgent: userAgents[rand.IntN(len(userAgents))],
		}
	}
	return pool
}

// runTest starts the workers and returns a channel for results
func runTest(ctx context.Context, cfg *PerfConfig, pool []simulatedVisitor) <-chan Result {
	results := make(chan Result, cfg.Concurrency*10)
	var wg sync.WaitGroup

	var interval time.Duration
	if cfg.VisitsPerSec > 0 {
		interval = time.Duration(float64(time.Second) * float64(cfg.Concurrency) / float64(cfg.VisitsPerSec))
	}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: cfg.Timeout}

			var ticker *time.Ticker
			if interval > 0 {
				ticker = time.NewTicker(interval)
				defer ticker.Stop()
			}

			for {
				if ticker != nil {
					select {
					case <-ticker.C:
					case <-ctx.Done():
						return
					}
				} else if ctx.Err() != nil {
					return
				}

				results <- sendVisit(ctx, client, cfg, pool[rand.IntN(len(pool))])
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func sendVisit(ctx context.Context, client *http.Client, cfg *PerfConfig, visitor simulatedVisitor) Result {
	paths := []string{"/", "/pricing", "/about", "/blog", "/docs", "/contact"}
	referrers := []string{"", "", "https://google.com", "https://duckduckgo.com", "https://github.com"}

	payload, err := json.Marshal(v1.TrackVisitParams{
		URL:              cfg.Origin + paths[rand.IntN(len(paths))],
		Title:            "Load test",
		Referrer:         referrers[rand.IntN(len(referrers))],
		SessionID:        fmt.Sprintf("perf_%s", visitor.ip),
		ScreenResolution: "1920x1080",
	})
	if err != nil {
		return Result{Error: fmt.Errorf("failed to marshal JSON: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/track", bytes.NewReader(payload))
	if err != nil {
		return Result{Error: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", visitor.userAgent)
	req.Header.Set("Origin", cfg.Origin)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("X-Forwarded-For", visitor.ip)

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Duration: elapsed, Error: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{Duration: elapsed, StatusCode: resp.StatusCode}
}

func (s *PerfStats) record(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Total++
	if result.Error != nil {
		s.Failed++
		return
	}

	s.StatusCodes[result.StatusCode]++
	s.ResponseTimes = append(s.ResponseTimes, result.Duration)
	if result.StatusCode == http.StatusOK {
		s.Successful++
	} else {
		s.Failed++
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// printResults displays the test results in an aligned table
func printResults(stats *PerfStats) {
	elapsed := stats.EndTime.Sub(stats.StartTime)
	sort.Slice(stats.ResponseTimes, func(i, j int) bool { return stats.ResponseTimes[i] < stats.ResponseTimes[j] })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\n%s\t%s\n", "METRIC", "VALUE")
	fmt.Fprintf(w, "%s\t%s\n", "------", "-----")
	fmt.Fprintf(w, "Duration\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Requests\t%d\n", stats.Total)
	fmt.Fprintf(w, "Successful\t%d\n", stats.Successful)
	fmt.Fprintf(w, "Failed\t%d\n", stats.Failed)
	if elapsed > 0 {
		fmt.Fprintf(w, "Requests/sec\t%.2f\n", float64(stats.Total)/elapsed.Seconds())
	}
	fmt.Fprintf(w, "p50 Latency\t%v\n", percentile(stats.ResponseTimes, 0.50))
	fmt.Fprintf(w, "p95 Latency\t%v\n", percentile(stats.ResponseTimes, 0.95))
	fmt.Fprintf(w, "p99 Latency\t%v\n", percentile(stats.ResponseTimes, 0.99))
	w.Flush()

	if len(stats.StatusCodes) == 0 {
		return
	}

	codes := make([]int, 0, len(stats.StatusCodes))
	for code := range stats.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Println("\nStatus Code Distribution:")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", "STATUS CODE", "COUNT")
	for _, code := range codes {
		fmt.Fprintf(w, "%d\t%d\n", code, stats.StatusCodes[code])
	}
	w.Flush()
}

package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// UserAgent identifies outbound registry and search requests.
const UserAgent = "Mozilla/5.0 (compatible; PocketSmithTaxPrep/1.0; +https://localhost)"

// DefaultFetchTimeout bounds a single outbound page fetch.
const DefaultFetchTimeout = 15 * time.Second

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 4 << 20

// Fetcher performs throttled GET requests for HTML pages.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewFetcher returns a Fetcher allowing perSecond requests on average.
// perSecond <= 0 disables throttling.
func NewFetcher(client *http.Client, perSecond float64, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 3),
		timeout: timeout,
	}
}

// Get fetches url and returns its body. Non-2xx responses are errors.
func (f *Fetcher) Get(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(body), nil
}

// Package enrich is the client side of merchant enrichment: the wire
// contract, an HTTP client with retries, the session intel cache and the
// batch coordinator.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// Service routes.
const (
	EnrichPath = "/api/enrich-merchants"
	HealthPath = "/api/health"
)

// DefaultClientTimeout bounds one batch round trip. A batch may fan out to
// many registry and search calls on the service side.
const DefaultClientTimeout = 2 * time.Minute

// Request is the enrichment request body.
type Request struct {
	Merchants    []model.MerchantRequest `json:"merchants"`
	ForceRefresh bool                    `json:"forceRefresh,omitempty"`
}

// Response is the enrichment response body.
type Response struct {
	Items []model.MerchantIntel `json:"items"`
	Total int                   `json:"total"`
}

// Health is the health endpoint body.
type Health struct {
	OK           bool `json:"ok"`
	CacheEntries int  `json:"cacheEntries"`
}

// Enricher resolves a batch of merchants to intel records.
type Enricher interface {
	Enrich(ctx context.Context, merchants []model.MerchantRequest, forceRefresh bool) ([]model.MerchantIntel, error)
}

// HTTPClient calls a remote enrichment service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient returns a client for the service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Enrich implements Enricher.
func (c *HTTPClient) Enrich(ctx context.Context, merchants []model.MerchantRequest, forceRefresh bool) ([]model.MerchantIntel, error) {
	body, err := json.Marshal(Request{Merchants: merchants, ForceRefresh: forceRefresh})
	if err != nil {
		return nil, fmt.Errorf("encoding enrichment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EnrichPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out Response
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		return nil, &Error{Code: ErrInvalidPayload, Message: "Enrichment API returned an invalid payload."}
	}
	return out.Items, nil
}

// Health reports the service status.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return Health{}, fmt.Errorf("building health request: %w", err)
	}
	var out Health
	if err := c.do(req, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{
			Code:      ErrServiceUnavailable,
			Message:   "calling enrichment service",
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Code:      ErrServiceUnavailable,
			Message:   "reading enrichment response",
			Status:    resp.StatusCode,
			Retryable: true,
			Cause:     err,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Code:    ErrInvalidPayload,
			Message: "Enrichment API returned an invalid payload.",
			Status:  resp.StatusCode,
			Cause:   err,
		}
	}
	return nil
}

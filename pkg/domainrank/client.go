// Package domainrank provides a client for the DomainRank authority
// metrics API. Calls are rate limited client-side and retried on
// transient failures.
package domainrank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/resilience"
)

// ErrDomainNotFound is returned when the API has no record of a domain.
var ErrDomainNotFound = eris.New("domainrank: domain not found")

// Client defines the DomainRank operations.
type Client interface {
	// DomainAuthority fetches rank, traffic, and keyword metrics for a
	// domain.
	DomainAuthority(ctx context.Context, domain string) (*model.DomainSignal, error)
}

// metricsResponse is the raw API payload.
type metricsResponse struct {
	Domain          string `json:"domain"`
	GlobalRank      int    `json:"global_rank"`
	MonthlyVisits   int64  `json:"monthly_visits"`
	IndexedKeywords int    `json:"indexed_keywords"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the client-side request rate.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithMaxRetries overrides the retry attempt budget.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) { c.retry = resilience.Retries(n) }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a DomainRank client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.domainrank.io/v1",
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("domainrank", "domain_authority")
	return c
}

func (c *httpClient) DomainAuthority(ctx context.Context, domain string) (*model.DomainSignal, error) {
	domain = model.NormalizeDomain(domain)
	if domain == "" {
		return nil, eris.New("domainrank: empty domain")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "domainrank: rate limit wait")
	}

	reqURL := fmt.Sprintf("%s/metrics?domain=%s", c.baseURL, url.QueryEscape(domain))

	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*metricsResponse, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		return nil, err
	}

	return &model.DomainSignal{
		Domain:          domain,
		Rank:            raw.GlobalRank,
		MonthlyTraffic:  raw.MonthlyVisits,
		IndexedKeywords: raw.IndexedKeywords,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

func (c *httpClient) fetch(ctx context.Context, reqURL string) (*metricsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "domainrank: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "domainrank: request")
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "domainrank: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrDomainNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("domainrank: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	default:
		return nil, eris.Errorf("domainrank: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out metricsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "domainrank: unmarshal response")
	}
	return &out, nil
}

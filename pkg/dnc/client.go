// Package dnc provides a client for the do-not-contact registry check
// service. The allocation engine fails closed when a check errors, so
// the client guards the upstream with a circuit breaker: once the
// registry is down, calls short-circuit instead of stalling every
// allocation on timeouts.
package dnc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/resilience"
)

// Client defines the registry check operations.
type Client interface {
	// IsDoNotContact reports whether the phone number is registered.
	IsDoNotContact(ctx context.Context, phone string) (bool, error)
}

type checkResponse struct {
	Phone      string `json:"phone"`
	Registered bool   `json:"registered"`
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

// WithMaxRetries overrides the retry attempt budget.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) { c.retry = resilience.Retries(n) }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) { c.breaker = b }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewClient creates a registry check client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.dncregistry.io/v1",
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.Retries(2),
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(from, to resilience.BreakerState) {
				zap.L().Warn("dnc: circuit state change",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("dnc", "check")
	return c
}

func (c *httpClient) IsDoNotContact(ctx context.Context, phone string) (bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false, eris.New("dnc: empty phone number")
	}

	return resilience.Exec(ctx, c.breaker, func(ctx context.Context) (bool, error) {
		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*checkResponse, error) {
			return c.check(ctx, phone)
		})
		if err != nil {
			return false, err
		}
		return resp.Registered, nil
	})
}

func (c *httpClient) check(ctx context.Context, phone string) (*checkResponse, error) {
	payload, err := json.Marshal(map[string]string{"phone": phone})
	if err != nil {
		return nil, eris.Wrap(err, "dnc: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check", strings.NewReader(string(payload)))
	if err != nil {
		return nil, eris.Wrap(err, "dnc: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "dnc: request")
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "dnc: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("dnc: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	default:
		return nil, eris.Errorf("dnc: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out checkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "dnc: unmarshal response")
	}
	return &out, nil
}

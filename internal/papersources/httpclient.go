package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// MaxResponseBytes caps how much of an upstream response body is decoded.
const MaxResponseBytes = 10 << 20

// maxErrorBodyBytes caps how much of an error body is read into a message.
const maxErrorBodyBytes = 1 << 20

// RequestObserver receives one call per upstream request. It is implemented
// by the metrics layer.
type RequestObserver interface {
	RecordSourceRequest(source string, statusCode int)
	RecordSourceRequestFailed(source string)
	RecordSourceRateLimited(source string)
}

type nopObserver struct{}

func (nopObserver) RecordSourceRequest(string, int) {}
func (nopObserver) RecordSourceRequestFailed(string) {}
func (nopObserver) RecordSourceRateLimited(string) {}

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the provider in errors and metrics.
	Source string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string

	// Observer receives request outcomes. Nil disables observation.
	Observer RequestObserver
}

// HTTPClient wraps http.Client with rate limiting and header defaults.
// Every call performs exactly one attempt; a 429 response is returned as a
// *domain.RateLimitError carrying the parsed Retry-After delay.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	observer    RequestObserver
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ScholarAggregator/1.0"
	}
	if cfg.Source == "" {
		cfg.Source = "upstream"
	}

	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		observer:    observer,
		config:      cfg,
	}
}

// Source returns the provider name used in errors and metrics.
func (c *HTTPClient) Source() string {
	return c.config.Source
}

// Do executes req once after waiting for the rate limiter.
//
// Transport failures are returned as *domain.ExternalAPIError wrapping the
// cause, so context deadlines stay visible to errors.Is. A 429 response is
// drained, closed and returned as *domain.RateLimitError. Any other response
// is handed to the caller, who owns closing its body.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.observer.RecordSourceRequestFailed(c.config.Source)
		message := "request failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			message = "request interrupted"
		}
		return nil, domain.NewExternalAPIError(c.config.Source, 0, message, err)
	}
	c.observer.RecordSourceRequest(c.config.Source, resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		c.observer.RecordSourceRateLimited(c.config.Source)
		return nil, domain.NewRateLimitError(c.config.Source, retryAfter)
	}

	return resp, nil
}

// Get builds and executes a GET request for rawURL.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// CheckResponse returns nil for 2xx responses and an *domain.ExternalAPIError
// carrying a bounded excerpt of the body otherwise.
func CheckResponse(source string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return domain.NewExternalAPIError(source, resp.StatusCode, "failed to read error response", err)
	}

	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return domain.NewExternalAPIError(source, resp.StatusCode, message, nil)
}

// parseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP date. Unparseable or past values yield zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}

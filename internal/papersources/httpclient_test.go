package papersources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

type observerSpy struct {
	requests    atomic.Int32
	failures    atomic.Int32
	rateLimited atomic.Int32
	lastStatus  atomic.Int32
}

func (o *observerSpy) RecordSourceRequest(_ string, status int) {
	o.requests.Add(1)
	o.lastStatus.Store(int32(status))
}

func (o *observerSpy) RecordSourceRequestFailed(string) { o.failures.Add(1) }

func (o *observerSpy) RecordSourceRateLimited(string) { o.rateLimited.Add(1) }

func TestNewHTTPClient(t *testing.T) {
	t.Run("creates client with custom config", func(t *testing.T) {
		cfg := HTTPClientConfig{
			Source:       "semantic_scholar",
			Timeout:      15 * time.Second,
			RateLimit:    5,
			BurstSize:    3,
			UserAgent:    "TestAgent/1.0",
			APIKey:       "test-key",
			APIKeyHeader: "x-api-key",
		}

		client := NewHTTPClient(cfg)

		require.NotNil(t, client)
		assert.Equal(t, 15*time.Second, client.client.Timeout)
		assert.Equal(t, "semantic_scholar", client.Source())
		assert.Equal(t, cfg.UserAgent, client.config.UserAgent)
	})

	t.Run("applies default values", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{})

		assert.Equal(t, 30*time.Second, client.client.Timeout)
		assert.Equal(t, "ScholarAggregator/1.0", client.config.UserAgent)
		assert.Equal(t, float64(10), client.config.RateLimit)
		assert.Equal(t, 10, client.config.BurstSize)
		assert.Equal(t, "upstream", client.Source())
	})
}

func TestHTTPClient_Do(t *testing.T) {
	t.Run("sets default headers and api key", func(t *testing.T) {
		var userAgent, apiKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent = r.Header.Get("User-Agent")
			apiKey = r.Header.Get("x-api-key")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		observer := &observerSpy{}
		client := NewHTTPClient(HTTPClientConfig{
			Source: "semantic_scholar", APIKey: "secret", APIKeyHeader: "x-api-key", Observer: observer,
		})

		resp, err := client.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ScholarAggregator/1.0", userAgent)
		assert.Equal(t, "secret", apiKey)
		assert.Equal(t, int32(1), observer.requests.Load())
		assert.Equal(t, int32(200), observer.lastStatus.Load())
	})

	t.Run("keeps caller user agent", func(t *testing.T) {
		var userAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "Custom/2.0")

		resp, err := NewHTTPClient(HTTPClientConfig{}).Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "Custom/2.0", userAgent)
	})

	t.Run("server errors are returned without retry", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		resp, err := NewHTTPClient(HTTPClientConfig{}).Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestHTTPClient_RateLimitResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	observer := &observerSpy{}
	client := NewHTTPClient(HTTPClientConfig{Source: "arxiv", Observer: observer})

	resp, err := client.Get(context.Background(), server.URL)
	assert.Nil(t, resp)
	require.Error(t, err)

	var rateErr *domain.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "arxiv", rateErr.Source)
	assert.Equal(t, 7*time.Second, rateErr.RetryAfter)
	assert.Equal(t, int32(1), calls.Load(), "a 429 must not be retried")
	assert.Equal(t, int32(1), observer.rateLimited.Load())
}

func TestHTTPClient_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		observer := &observerSpy{}
		_, err := NewHTTPClient(HTTPClientConfig{Source: "pubmed", Observer: observer}).Get(context.Background(), url)
		require.Error(t, err)
		assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
		assert.Equal(t, int32(1), observer.failures.Load())
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewHTTPClient(HTTPClientConfig{}).Get(ctx, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
	})

	t.Run("canceled before send", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewHTTPClient(HTTPClientConfig{}).Get(ctx, "http://127.0.0.1:1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCheckResponse(t *testing.T) {
	newResp := func(status int) *http.Response {
		return &http.Response{StatusCode: status, Body: http.NoBody}
	}

	t.Run("success", func(t *testing.T) {
		assert.NoError(t, CheckResponse("arxiv", newResp(http.StatusOK)))
	})

	t.Run("error with body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(" invalid query "))
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		err = CheckResponse("arxiv", resp)
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "invalid query", apiErr.Message)
	})

	t.Run("empty body uses status text", func(t *testing.T) {
		err := CheckResponse("arxiv", newResp(http.StatusBadGateway))
		assert.ErrorContains(t, err, "Bad Gateway")
	})

	t.Run("long body is truncated", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 2000))),
		}

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, CheckResponse("arxiv", resp), &apiErr)
		assert.Len(t, apiErr.Message, 512)
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty", value: "", want: 0},
		{name: "seconds", value: "30", want: 30 * time.Second},
		{name: "zero", value: "0", want: 0},
		{name: "negative", value: "-5", want: 0},
		{name: "garbage", value: "soon", want: 0},
		{name: "past date", value: "Wed, 21 Oct 2015 07:28:00 GMT", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value))
		})
	}

	t.Run("future date", func(t *testing.T) {
		future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
		got := parseRetryAfter(future)
		assert.Greater(t, got, 50*time.Second)
		assert.LessOrEqual(t, got, time.Minute)
	})
}

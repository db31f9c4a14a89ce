// Package fetch is the shared HTTP client the REST workers use: one
// 15-second-timeout client guarded per source by a circuit breaker and a
// token-bucket limiter. The RSS loop does not go through it.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/marketfeed/internal/circuit"
	"github.com/sawpanic/marketfeed/internal/netrate"
)

const requestTimeout = 15 * time.Second

// Client performs a GET/POST for a named source, applying its rate limiter
// and circuit breaker before the request is attempted.
type Client struct {
	http      *http.Client
	breakers  *circuit.Registry
	limiters  *netrate.Manager
	userAgent string
}

func New(breakers *circuit.Registry, limiters *netrate.Manager) *Client {
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		breakers:  breakers,
		limiters:  limiters,
		userAgent: "marketfeed/1.0",
	}
}

// Request describes one REST fetch.
type Request struct {
	Source       string
	Method       string
	URL          string
	Body         string
	ContentType  string
	APIKeyHeader string
	APIKey       string
}

// Do executes req, gated by req.Source's breaker and limiter, and returns
// the response body. A non-2xx status is a transport-kind error.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if err := c.limiters.Wait(ctx, req.Source); err != nil {
		return nil, fmt.Errorf("fetch: rate limiter wait: %w", err)
	}

	var body []byte
	err := c.breakers.For(req.Source).Call(ctx, func(ctx context.Context) error {
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}

		var bodyReader io.Reader
		if req.Body != "" {
			bodyReader = strings.NewReader(req.Body)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("User-Agent", c.userAgent)
		if req.ContentType != "" {
			httpReq.Header.Set("Content-Type", req.ContentType)
		}
		if req.APIKeyHeader != "" && req.APIKey != "" {
			httpReq.Header.Set(req.APIKeyHeader, req.APIKey)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("non-2xx status: %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sawpanic/marketfeed/internal/circuit"
	"github.com/sawpanic/marketfeed/internal/netrate"
)

func newTestClient() *Client {
	return New(circuit.NewRegistry(circuit.NewSourceBreaker()), netrate.NewManager(100, 10))
}

func TestDo_ReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient()
	body, err := c.Do(context.Background(), Request{
		Source: "testsrc", URL: srv.URL, APIKeyHeader: "X-Api-Key", APIKey: "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestDo_NonTwoXXStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Do(context.Background(), Request{Source: "testsrc", URL: srv.URL})
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestDo_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient()
	for i := 0; i < 5; i++ {
		c.Do(context.Background(), Request{Source: "flaky", URL: srv.URL})
	}

	_, err := c.Do(context.Background(), Request{Source: "flaky", URL: srv.URL})
	if err != circuit.ErrOpen {
		t.Fatalf("expected breaker to be open after threshold failures, got %v", err)
	}
}

func TestDo_RateLimiterGatesRequests(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(circuit.NewRegistry(circuit.NewSourceBreaker()), netrate.NewManager(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := c.Do(ctx, Request{Source: "limited", URL: srv.URL}); err != nil {
		t.Fatalf("first request should pass the burst: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one upstream hit, got %d", hits)
	}

	// The single token is spent; at 1 rps the next one is a second away, so a
	// 50ms deadline must be refused by the limiter before any request is sent.
	shortCtx, shortCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer shortCancel()
	if _, err := c.Do(shortCtx, Request{Source: "limited", URL: srv.URL}); err == nil {
		t.Fatal("expected the second immediate request to be held back by the limiter")
	}
	if hits != 1 {
		t.Fatalf("expected the limiter to keep upstream hits at 1, got %d", hits)
	}
}

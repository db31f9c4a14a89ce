package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sawpanic/marketfeed/internal/config"
	"github.com/sawpanic/marketfeed/internal/logging"
	"github.com/sawpanic/marketfeed/internal/model"
)

type fakeStore struct{}

func (f *fakeStore) InsertDataPoint(ctx context.Context, dp model.DataPoint) error { return nil }
func (f *fakeStore) InsertNews(ctx context.Context, item model.NewsItem) error     { return nil }
func (f *fakeStore) LatestDataPoints(ctx context.Context, category model.Category, limit int) ([]model.DataPoint, error) {
	return nil, nil
}
func (f *fakeStore) AllLatestNews(ctx context.Context, limit int) ([]model.NewsItem, error) {
	return nil, nil
}
func (f *fakeStore) History(ctx context.Context, symbol string, limit int) ([]model.DataPoint, error) {
	return nil, nil
}
func (f *fakeStore) UpsertSourceStatus(ctx context.Context, name string, kind model.SourceKind, errMsg string) error {
	return nil
}
func (f *fakeStore) SourceStatuses(ctx context.Context) ([]model.SourceStatus, error) { return nil, nil }
func (f *fakeStore) PruneOlderThan(ctx context.Context, ageSeconds int64) error       { return nil }
func (f *fakeStore) Count(ctx context.Context) (int64, error)                        { return 0, nil }
func (f *fakeStore) Close() error                                                     { return nil }

// TestRunRESTPool_EmptyBatchReturnsImmediately covers the no-sources case:
// the dispatcher must not spin up workers or block waiting on an empty
// batch, and must return promptly once ctx is cancelled.
func TestRunRESTPool_EmptyBatchReturnsImmediately(t *testing.T) {
	cfg := config.Config{}
	sched := New(cfg, &fakeStore{}, logging.New("error"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.runRESTPool(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runRESTPool with zero configured sources should return as soon as it is called")
	}
}

func TestScheduler_RequestRefreshIsNonBlockingAndCoalesces(t *testing.T) {
	sched := New(config.Config{}, &fakeStore{}, logging.New("error"))

	sched.RequestRefresh()
	sched.RequestRefresh() // second call before consumption must not block

	if !sched.consumeForceRefresh() {
		t.Fatal("expected the force refresh flag to be set")
	}
	if sched.consumeForceRefresh() {
		t.Fatal("force refresh flag should be a one-shot signal")
	}
}

// TestProcessRESTSource_EmptyPayloadIsNoOpNotSuccess covers the case where a
// source fetches and parses cleanly but yields zero records (e.g. a
// rate-limited upstream returning "[]"): this must advance LastAttempt only,
// never reset ConsecutiveFailures/Backoff the way a real RecordSuccess does.
func TestProcessRESTSource_EmptyPayloadIsNoOpNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := config.RESTSource{Name: "empty-src", BaseURL: srv.URL, Category: model.CategoryCrypto}
	cfg := config.Config{REST: []config.RESTSource{src}}
	sched := New(cfg, &fakeStore{}, logging.New("error"))

	h := sched.restHealth.Get(src.Name)
	h.ConsecutiveFailures = 2
	h.Backoff = 4 * time.Second
	staleAttempt := time.Now().Add(-time.Hour)
	h.LastAttempt = staleAttempt

	sched.processRESTSource(context.Background(), src)

	if h.ConsecutiveFailures != 2 {
		t.Errorf("expected ConsecutiveFailures to remain 2 on an empty-but-clean payload, got %d", h.ConsecutiveFailures)
	}
	if h.Backoff != 4*time.Second {
		t.Errorf("expected Backoff to remain untouched on an empty-but-clean payload, got %v", h.Backoff)
	}
	if !h.LastAttempt.After(staleAttempt) {
		t.Error("expected LastAttempt to advance even on a no-op fetch")
	}
}

// TestProcessRSSSource_EmptyFeedIsNoOpNotSuccess mirrors the REST no-op
// coverage above: a feed that parses cleanly but has zero items must not
// reset ConsecutiveFailures/Backoff via a full RecordSuccess.
func TestProcessRSSSource_EmptyFeedIsNoOpNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`))
	}))
	defer srv.Close()

	src := config.RSSSource{Name: "empty-feed", URL: srv.URL, Category: model.CategoryNews}
	cfg := config.Config{RSS: []config.RSSSource{src}}
	sched := New(cfg, &fakeStore{}, logging.New("error"))

	h := sched.rssHealth.Get(src.Name)
	h.ConsecutiveFailures = 2
	h.Backoff = 4 * time.Second
	staleAttempt := time.Now().Add(-time.Hour)
	h.LastAttempt = staleAttempt

	sched.processRSSSource(context.Background(), src)

	if h.ConsecutiveFailures != 2 {
		t.Errorf("expected ConsecutiveFailures to remain 2 on an empty feed, got %d", h.ConsecutiveFailures)
	}
	if h.Backoff != 4*time.Second {
		t.Errorf("expected Backoff to remain untouched on an empty feed, got %v", h.Backoff)
	}
	if !h.LastAttempt.After(staleAttempt) {
		t.Error("expected LastAttempt to advance even on a no-op fetch")
	}
}

func TestSleepInterruptible_ReturnsFalseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if sleepInterruptible(ctx, time.Hour) {
		t.Fatal("expected sleepInterruptible to return false immediately on a cancelled context")
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sawpanic/marketfeed/internal/logging"
	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/store"
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
func (f *fakeStore) SourceStatuses(ctx context.Context) ([]model.SourceStatus, error) {
	return []model.SourceStatus{{SourceName: "coingecko", ErrorCount: 1}}, nil
}
func (f *fakeStore) PruneOlderThan(ctx context.Context, ageSeconds int64) error { return nil }
func (f *fakeStore) Count(ctx context.Context) (int64, error)                  { return 3, nil }
func (f *fakeStore) Close() error                                              { return nil }

type testSource struct {
	st        store.Store
	snap      model.Snapshot
	refreshed bool
}

func (s *testSource) Snapshot() model.Snapshot { return s.snap }
func (s *testSource) Store() store.Store       { return s.st }
func (s *testSource) RequestRefresh()          { s.refreshed = true }

func TestHandleEntries_FiltersByCategoryAndSymbol(t *testing.T) {
	snap := model.Snapshot{Entries: []model.DataPoint{
		{Symbol: "BTC", Category: model.CategoryCrypto},
		{Symbol: "AAPL", Category: model.CategoryStockIndex},
	}}
	src := &testSource{st: &fakeStore{}, snap: snap}
	srv := New(src, ":0", logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries?category=crypto", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var body struct {
		Data  []model.DataPoint `json:"data"`
		Count int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || body.Data[0].Symbol != "BTC" {
		t.Fatalf("expected only the crypto entry to survive the filter, got %+v", body)
	}
}

func TestHandleSources_EnrichesWithHealthTag(t *testing.T) {
	src := &testSource{st: &fakeStore{}, snap: model.Snapshot{}}
	srv := New(src, ":0", logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data []struct {
			SourceName string          `json:"source_name"`
			Health     model.HealthTag `json:"health"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Health != model.HealthDegraded {
		t.Fatalf("expected the error_count=1 source to be tagged degraded, got %+v", body)
	}
}

func TestHandleRefresh_TriggersRequestRefresh(t *testing.T) {
	src := &testSource{st: &fakeStore{}, snap: model.Snapshot{}}
	srv := New(src, ":0", logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if !src.refreshed {
		t.Fatal("expected RequestRefresh to be called")
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestHandleNotFound(t *testing.T) {
	src := &testSource{st: &fakeStore{}, snap: model.Snapshot{}}
	srv := New(src, ":0", logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCORSMiddleware_AnswersOptions(t *testing.T) {
	src := &testSource{st: &fakeStore{}, snap: model.Snapshot{}}
	srv := New(src, ":0", logging.New("error"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/entries", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on OPTIONS, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected wildcard CORS origin header")
	}
}

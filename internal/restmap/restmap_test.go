package restmap

import (
	"math"
	"testing"
	"time"

	"github.com/sawpanic/marketfeed/internal/model"
)

func TestMapDataPoints_ArrayShape(t *testing.T) {
	body := []byte(`[{"symbol":"AAPL","price":190.5,"change_percent":1.2,"volume":1000}]`)
	cfg := Config{Name: "test", Category: model.CategoryStockIndex, SourceName: "test"}

	points, err := cfg.MapDataPoints(body, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Symbol != "AAPL" || points[0].Value != 190.5 {
		t.Errorf("unexpected point: %+v", points[0])
	}
}

func TestMapDataPoints_ObjectOfObjects_CoinGeckoDefaults(t *testing.T) {
	body := []byte(`{"bitcoin":{"usd":65000,"usd_24h_change":2.5,"usd_24h_vol":1000000}}`)
	cfg := Config{Name: "coingecko", Category: model.CategoryCrypto, SourceName: "coingecko"}

	points, err := cfg.MapDataPoints(body, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Symbol != "bitcoin" || points[0].Value != 65000 || points[0].ChangePct != 2.5 {
		t.Errorf("unexpected point: %+v", points[0])
	}
}

func TestMapDataPoints_AutoDerivedChangeFromPrevClose(t *testing.T) {
	body := []byte(`[{"symbol":"MSFT","price":110,"prev_close":100}]`)
	cfg := Config{
		Name:           "test",
		Category:       model.CategoryStockIndex,
		SourceName:     "test",
		FieldPrevClose: "prev_close",
	}

	points, err := cfg.MapDataPoints(body, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if math.Abs(points[0].ChangePct-10.0) > 1e-9 {
		t.Errorf("expected auto-derived change_pct of 10.0, got %v", points[0].ChangePct)
	}
}

func TestMapDataPoints_FlatSingleObject(t *testing.T) {
	body := []byte(`{"price":42.0,"change_percent":-0.5}`)
	cfg := Config{Name: "spotgold", Category: model.CategoryCommodity, SourceName: "spotgold", SymbolFilter: []string{"XAU"}}

	points, err := cfg.MapDataPoints(body, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Symbol != "XAU" || points[0].Value != 42.0 {
		t.Errorf("unexpected point: %+v", points[0])
	}
}

func TestMapDataPoints_SymbolFilterExcludes(t *testing.T) {
	body := []byte(`[{"symbol":"AAPL","price":190.5},{"symbol":"MSFT","price":300.0}]`)
	cfg := Config{Name: "test", Category: model.CategoryStockIndex, SourceName: "test", SymbolFilter: []string{"AAPL"}}

	points, err := cfg.MapDataPoints(body, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0].Symbol != "AAPL" {
		t.Fatalf("expected only AAPL to survive the filter, got %+v", points)
	}
}

func TestExtractFloat_StringAndArrayLeaves(t *testing.T) {
	if v := extractFloat("3.14"); v != 3.14 {
		t.Errorf("expected 3.14, got %v", v)
	}
	if v := extractFloat(""); !math.IsNaN(v) {
		t.Errorf("expected NaN for empty string, got %v", v)
	}
	if v := extractFloat([]interface{}{"2.5", "9.9"}); v != 2.5 {
		t.Errorf("expected first array element 2.5, got %v", v)
	}
}

func TestNavigate_DottedPathAndArrayIndex(t *testing.T) {
	root := map[string]interface{}{
		"data": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"symbol": "AAPL"},
			},
		},
	}
	got := navigate(root, "data.items.0.symbol")
	if got != "AAPL" {
		t.Fatalf("expected AAPL, got %v", got)
	}
}

func TestMapNews_CalendarMode(t *testing.T) {
	body := []byte(`[{"title":"Fed holds rates","url":"https://example.com/1","summary":"details"}]`)
	cfg := Config{Name: "calendar", Category: model.CategoryFinancialNews, SourceName: "calendar"}

	items, err := cfg.MapNews(body, time.Now(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 news item, got %d", len(items))
	}
	if items[0].Title != "Fed holds rates" || items[0].Score != 100 {
		t.Errorf("unexpected item: %+v", items[0])
	}
}

package stream

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sawpanic/marketfeed/internal/model"
)

func TestHandleMessage_PrefersCloseOverPrice(t *testing.T) {
	var inserted model.DataPoint
	insert := func(ctx context.Context, dp model.DataPoint) error {
		inserted = dp
		return nil
	}

	sup := NewSupervisor(Source{Name: "binance", Category: model.CategoryCrypto}, insert, nil, zerolog.Nop())
	sup.handleMessage(context.Background(), []byte(`{"s":"BTCUSDT","c":"65000.5","p":"64000.0","P":"1.2","v":"100"}`))

	if inserted.Symbol != "BTCUSDT" || inserted.Value != 65000.5 {
		t.Fatalf("expected close price to win over price, got %+v", inserted)
	}
}

func TestHandleMessage_FallsBackToPriceWhenCloseMissing(t *testing.T) {
	var inserted model.DataPoint
	insert := func(ctx context.Context, dp model.DataPoint) error {
		inserted = dp
		return nil
	}

	sup := NewSupervisor(Source{Name: "binance", Category: model.CategoryCrypto}, insert, nil, zerolog.Nop())
	sup.handleMessage(context.Background(), []byte(`{"s":"ETHUSDT","p":"3200.0","P":"-0.5","v":"50"}`))

	if inserted.Symbol != "ETHUSDT" || inserted.Value != 3200.0 {
		t.Fatalf("expected price fallback, got %+v", inserted)
	}
}

func TestHandleMessage_IgnoresZeroOrMissingSymbol(t *testing.T) {
	calls := 0
	insert := func(ctx context.Context, dp model.DataPoint) error {
		calls++
		return nil
	}

	sup := NewSupervisor(Source{Name: "binance", Category: model.CategoryCrypto}, insert, nil, zerolog.Nop())
	sup.handleMessage(context.Background(), []byte(`{"s":"","c":"100"}`))
	sup.handleMessage(context.Background(), []byte(`{"s":"BTCUSDT","c":"0"}`))
	sup.handleMessage(context.Background(), []byte(`not json`))

	if calls != 0 {
		t.Fatalf("expected no inserts for invalid frames, got %d", calls)
	}
}

func TestHandleMessage_CallsOnData(t *testing.T) {
	onDataCalled := false
	insert := func(ctx context.Context, dp model.DataPoint) error { return nil }
	onData := func() { onDataCalled = true }

	sup := NewSupervisor(Source{Name: "binance", Category: model.CategoryCrypto}, insert, onData, zerolog.Nop())
	sup.handleMessage(context.Background(), []byte(`{"s":"BTCUSDT","c":"65000"}`))

	if !onDataCalled {
		t.Fatal("expected onData callback to fire after a successful insert")
	}
}

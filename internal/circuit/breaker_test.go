package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Hour, RequestTimeout: time.Second})
	failing := func(ctx context.Context) error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), failing)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected breaker to open after 3 failures, got %s", b.State())
	}

	err := b.Call(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while circuit is open, got %v", err)
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Millisecond, RequestTimeout: time.Second})
	_ = b.Call(context.Background(), func(context.Context) error { return errors.New("boom") })
	if b.State() != StateOpen {
		t.Fatalf("expected open state after single failure with threshold 1, got %s", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := b.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Fatalf("unexpected error during recovery probe: %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("expected breaker to close after success threshold met, got %s", b.State())
	}
}

func TestBreaker_RequestTimeout(t *testing.T) {
	b := New(Config{FailureThreshold: 5, SuccessThreshold: 1, OpenTimeout: time.Hour, RequestTimeout: 10 * time.Millisecond})
	err := b.Call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRegistry_PerSourceIsolation(t *testing.T) {
	r := NewRegistry(NewSourceBreaker())
	a := r.For("src-a")
	b := r.For("src-b")
	if a == b {
		t.Fatal("expected distinct breakers per source")
	}
	if r.For("src-a") != a {
		t.Fatal("expected the same breaker instance on repeated lookup")
	}
}

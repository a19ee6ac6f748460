package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter(quietLogger())

	var got uuid.UUID
	r.Register("orders.fetch_new", func(ctx context.Context, scheduleID uuid.UUID) error {
		got = scheduleID
		return nil
	})

	id := uuid.New()
	ok, err := r.Dispatch(context.Background(), "orders.fetch_new", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected dispatch to succeed")
	}
	if got != id {
		t.Errorf("expected schedule id %s, got %s", id, got)
	}
}

func TestRouter_Dispatch_UnknownType(t *testing.T) {
	r := NewRouter(quietLogger())

	// Неизвестный тип — не ошибка: вызывающий помечает skipped
	ok, err := r.Dispatch(context.Background(), "reports.generate", uuid.New())
	if err != nil {
		t.Fatalf("unknown type must not be an error: %v", err)
	}
	if ok {
		t.Error("unknown type must report enqueued=false")
	}
}

func TestRouter_Dispatch_TransportError(t *testing.T) {
	r := NewRouter(quietLogger())

	brokerErr := errors.New("connection refused")
	r.Register("orders.fetch_new", func(ctx context.Context, scheduleID uuid.UUID) error {
		return brokerErr
	})

	ok, err := r.Dispatch(context.Background(), "orders.fetch_new", uuid.New())
	if !errors.Is(err, brokerErr) {
		t.Errorf("expected transport error, got %v", err)
	}
	if ok {
		t.Error("failed dispatch must report enqueued=false")
	}
}

func TestRouter_Register_Overwrites(t *testing.T) {
	r := NewRouter(quietLogger())

	r.Register("orders.fetch_new", func(ctx context.Context, _ uuid.UUID) error {
		return errors.New("old route")
	})
	r.Register("orders.fetch_new", func(ctx context.Context, _ uuid.UUID) error {
		return nil
	})

	if ok, err := r.Dispatch(context.Background(), "orders.fetch_new", uuid.New()); err != nil || !ok {
		t.Error("re-registration should replace the previous route")
	}
}

func TestRouter_Types_Sorted(t *testing.T) {
	r := NewRouter(quietLogger())
	noop := func(ctx context.Context, _ uuid.UUID) error { return nil }

	r.Register("products.sync", noop)
	r.Register("analytics.rollup", noop)
	r.Register("orders.fetch_new", noop)

	types := r.Types()
	want := []string{"analytics.rollup", "orders.fetch_new", "products.sync"}
	if len(types) != len(want) {
		t.Fatalf("expected %d types, got %d", len(want), len(types))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], types[i])
		}
	}

	if !r.Has("products.sync") || r.Has("reports.generate") {
		t.Error("Has reports wrong registration state")
	}
}

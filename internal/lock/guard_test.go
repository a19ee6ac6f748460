package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuard_WithLock_Runs(t *testing.T) {
	guard := NewGuard(NewMemoryProvider(), time.Minute, quietLogger())

	var called bool
	ran, err := guard.WithLock(context.Background(), "orders", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran || !called {
		t.Error("fn should run when the lock is free")
	}
}

func TestGuard_WithLock_MutualExclusion(t *testing.T) {
	guard := NewGuard(NewMemoryProvider(), time.Minute, quietLogger())

	ran, err := guard.WithLock(context.Background(), "orders", func(ctx context.Context) error {
		// Вложенный захват того же семейства не проходит
		inner, err := guard.WithLock(ctx, "orders", func(ctx context.Context) error {
			t.Error("inner fn must not run")
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected inner error: %v", err)
		}
		if inner {
			t.Error("inner acquire should report ran=false")
		}

		// Другое семейство — независимая блокировка
		other, err := guard.WithLock(ctx, "products", func(ctx context.Context) error { return nil })
		if err != nil || !other {
			t.Error("different kind should acquire independently")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("outer fn should run")
	}
}

func TestGuard_WithLock_ReleasedAfterRun(t *testing.T) {
	guard := NewGuard(NewMemoryProvider(), time.Minute, quietLogger())

	if _, err := guard.WithLock(context.Background(), "orders", func(ctx context.Context) error {
		return errors.New("job blew up")
	}); err == nil {
		t.Fatal("fn error should propagate")
	}

	// Ошибка fn не мешает release: следующий захват проходит
	ran, err := guard.WithLock(context.Background(), "orders", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("lock should be free after the previous holder returned")
	}
}

func TestGuard_WithLock_PanicReleasesAndPropagates(t *testing.T) {
	guard := NewGuard(NewMemoryProvider(), time.Minute, quietLogger())

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should propagate out of WithLock")
			}
		}()
		guard.WithLock(context.Background(), "orders", func(ctx context.Context) error {
			panic("handler exploded")
		})
	}()

	ran, err := guard.WithLock(context.Background(), "orders", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("lock should be released after a panicking holder")
	}
}

func TestMemoryProvider_TTLExpiry(t *testing.T) {
	provider := NewMemoryProvider()

	token, err := provider.TryAcquire(context.Background(), "sellerdesk:lock:orders", 10*time.Millisecond)
	if err != nil || token == nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	// Пока TTL жив, блокировка занята
	if second, _ := provider.TryAcquire(context.Background(), "sellerdesk:lock:orders", time.Minute); second != nil {
		t.Fatal("lock should be held before TTL expiry")
	}

	time.Sleep(20 * time.Millisecond)

	// TTL истёк — упавший держатель больше не блокирует
	third, err := provider.TryAcquire(context.Background(), "sellerdesk:lock:orders", time.Minute)
	if err != nil || third == nil {
		t.Error("lock should be acquirable after TTL expiry")
	}
}

func TestMemoryProvider_StaleTokenRelease(t *testing.T) {
	provider := NewMemoryProvider()

	stale, _ := provider.TryAcquire(context.Background(), "sellerdesk:lock:orders", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	// Блокировку перехватил новый держатель
	fresh, _ := provider.TryAcquire(context.Background(), "sellerdesk:lock:orders", time.Minute)
	if fresh == nil {
		t.Fatal("expected to re-acquire expired lock")
	}

	// Release протухшего токена не снимает чужую блокировку
	if err := provider.Release(context.Background(), stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again, _ := provider.TryAcquire(context.Background(), "sellerdesk:lock:orders", time.Minute); again != nil {
		t.Error("stale release must not free the current holder's lock")
	}
}

package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns <= 0 || c.MaxIdleConns <= 0 {
		t.Fatalf("expected positive pool sizes, got %+v", c)
	}
	if c.ConnMaxLifetime <= 0 || c.PingTimeout <= 0 {
		t.Fatalf("expected positive durations, got %+v", c)
	}

	// Explicit values survive.
	c = PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if c.MaxOpenConns != 3 {
		t.Fatalf("expected MaxOpenConns=3, got %d", c.MaxOpenConns)
	}
	if c.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %v", c.PingTimeout)
	}
}

func TestReadWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	err := ReadWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestReadWithRetry_BoundedAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("still down")
	err := ReadWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestReadWithRetry_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := ReadWithRetry(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancel, got %d attempts", calls)
	}
}

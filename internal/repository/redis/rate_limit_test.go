package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRateLimitRepository_BlocksAfterLimit(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, "ppv:rate-limit")

	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)
	window := 15 * time.Minute

	for i := 0; i < 3; i++ {
		decision, err := repo.Allow(ctx, "login:203.0.113.7", 3, window, start.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !decision.Allowed || decision.Count != i+1 {
			t.Fatalf("attempt %d: unexpected decision %+v", i+1, decision)
		}
	}

	decision, err := repo.Allow(ctx, "login:203.0.113.7", 3, window, start.Add(5*time.Second))
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected 4th attempt to be rejected")
	}
	if decision.Count != 3 {
		t.Fatalf("rejected attempt must not be recorded, count=%d", decision.Count)
	}
	if !decision.Oldest.Equal(start) {
		t.Fatalf("expected oldest %v, got %v", start, decision.Oldest)
	}

	if !server.Exists("ppv:rate-limit:login:203.0.113.7") {
		t.Fatalf("expected prefixed key to exist")
	}
	if ttl := server.TTL("ppv:rate-limit:login:203.0.113.7"); ttl <= 0 || ttl > window {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestRateLimitRepository_WindowSlides(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "")

	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)
	window := time.Minute

	if d, err := repo.Allow(ctx, "register:ip", 2, window, start); err != nil || !d.Allowed {
		t.Fatalf("first attempt: %+v, %v", d, err)
	}
	if d, err := repo.Allow(ctx, "register:ip", 2, window, start.Add(10*time.Second)); err != nil || !d.Allowed {
		t.Fatalf("second attempt: %+v, %v", d, err)
	}

	// Exactly at the window edge the oldest attempt is still counted.
	if d, err := repo.Allow(ctx, "register:ip", 2, window, start.Add(window)); err != nil || d.Allowed {
		t.Fatalf("attempt at window edge should be rejected: %+v, %v", d, err)
	}

	// Strictly after the oldest ages out a slot frees up.
	d, err := repo.Allow(ctx, "register:ip", 2, window, start.Add(window+time.Millisecond))
	if err != nil || !d.Allowed {
		t.Fatalf("attempt after window should pass: %+v, %v", d, err)
	}
	if d.Count != 2 {
		t.Fatalf("expected 2 attempts in window, got %d", d.Count)
	}
}

func TestRateLimitRepository_IdentifiersAreIndependent(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "rl")

	ctx := context.Background()
	now := time.Now()

	if d, _ := repo.Allow(ctx, "login:a", 1, time.Minute, now); !d.Allowed {
		t.Fatalf("expected first identifier to pass")
	}
	if d, _ := repo.Allow(ctx, "login:b", 1, time.Minute, now); !d.Allowed {
		t.Fatalf("expected second identifier to pass")
	}
	if d, _ := repo.Allow(ctx, "login:a", 1, time.Minute, now); d.Allowed {
		t.Fatalf("expected first identifier to be exhausted")
	}
}

func TestRateLimitRepository_ConcurrentCallersNeverExceedLimit(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "rl")

	ctx := context.Background()
	now := time.Now()

	var (
		allowed atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := repo.Allow(ctx, "login:burst", 10, time.Minute, now)
			if err != nil {
				t.Errorf("Allow returned error: %v", err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 10 {
		t.Fatalf("expected exactly 10 allowed attempts, got %d", got)
	}
}

func TestRateLimitRepository_RejectsInvalidArguments(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "rl")

	if _, err := repo.Allow(context.Background(), "x", 0, time.Minute, time.Now()); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := repo.Allow(context.Background(), "x", 1, 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

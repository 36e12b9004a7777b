package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, "exam:"), mr
}

func TestCacheHelper_GetSet(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestHelper(t)

	type payload struct {
		Title string  `json:"title"`
		Score float64 `json:"score"`
	}

	t.Run("round trip", func(t *testing.T) {
		if err := helper.Set(ctx, "42", payload{Title: "Midterm", Score: 66.6}, time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		var got payload
		if err := helper.Get(ctx, "42", &got); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Title != "Midterm" || got.Score != 66.6 {
			t.Errorf("Round trip corrupted data: %+v", got)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		var got payload
		err := helper.Get(ctx, "does-not-exist", &got)
		if !errors.Is(err, ErrCacheNotFound) {
			t.Errorf("Expected ErrCacheNotFound, got %v", err)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		if err := helper.Set(ctx, "short", payload{Title: "Quiz"}, time.Second); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		mr.FastForward(2 * time.Second)

		var got payload
		err := helper.Get(ctx, "short", &got)
		if !errors.Is(err, ErrCacheNotFound) {
			t.Errorf("Expected expiry, got %v", err)
		}
	})
}

func TestCacheHelper_Delete(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestHelper(t)

	if err := helper.Set(ctx, "1", "a", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := helper.Set(ctx, "2", "b", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := helper.Delete(ctx, "1", "2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var got string
	if err := helper.Get(ctx, "1", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Key 1 survived delete: %v", err)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestHelper(t)

	for _, key := range []string{"10", "11", "20"} {
		if err := helper.Set(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "1*"); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}

	var got string
	if err := helper.Get(ctx, "10", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Key 10 survived invalidation: %v", err)
	}
	if err := helper.Get(ctx, "20", &got); err != nil {
		t.Errorf("Key 20 should survive invalidation: %v", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestHelper(t)

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return map[string]string{"name": "Algebra"}, nil
	}

	var first map[string]string
	if err := helper.CacheOrExecute(ctx, "subject", &first, time.Minute, load); err != nil {
		t.Fatalf("CacheOrExecute failed: %v", err)
	}

	var second map[string]string
	if err := helper.CacheOrExecute(ctx, "subject", &second, time.Minute, load); err != nil {
		t.Fatalf("CacheOrExecute failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected a single load, got %d", calls)
	}
	if second["name"] != "Algebra" {
		t.Errorf("Cached value wrong: %v", second)
	}
}

func TestCacheHelper_NilClient(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "exam:")

	var got string
	if err := helper.Get(ctx, "any", &got); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Expected ErrCacheNotAvailable, got %v", err)
	}
	if err := helper.Set(ctx, "any", "x", time.Minute); err != nil {
		t.Errorf("Set with nil client should be a no-op: %v", err)
	}

	calls := 0
	var dest string
	err := helper.CacheOrExecute(ctx, "any", &dest, time.Minute, func() (interface{}, error) {
		calls++
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute failed: %v", err)
	}
	if calls != 1 || dest != "fresh" {
		t.Errorf("Expected a plain execute, got calls=%d dest=%q", calls, dest)
	}
}

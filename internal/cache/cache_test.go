package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsCacheMiss(err) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("expected v, got %v (%v)", v, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsCacheMiss(err) {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", 1, 10*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(ctx, "k"); !IsCacheMiss(err) {
		t.Error("expected miss after TTL expiry")
	}
}

func TestMemoryCache_GetOrCompute(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (any, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute(ctx, "k", 0, fn)
		if err != nil || v != 42 {
			t.Fatalf("expected 42, got %v (%v)", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one compute, got %d", calls)
	}

	// Invalidation forces recompute.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := c.GetOrCompute(ctx, "k", 0, fn); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected recompute after invalidation, got %d calls", calls)
	}
}

func TestMemoryCache_GetOrComputeError(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	wantErr := errors.New("compute failed")
	_, err := c.GetOrCompute(context.Background(), "k", 0, func(context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected compute error, got %v", err)
	}
	if _, err := c.Get(context.Background(), "k"); !IsCacheMiss(err) {
		t.Error("failed compute must not populate the cache")
	}
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "agent:a1:prefs", 1, 0)
	c.Set(ctx, "agent:a1:utility", 2, 0)
	c.Set(ctx, "agent:a2:prefs", 3, 0)

	if err := c.DeletePrefix(ctx, "agent:a1:"); err != nil {
		t.Fatalf("delete prefix failed: %v", err)
	}
	if _, err := c.Get(ctx, "agent:a1:prefs"); !IsCacheMiss(err) {
		t.Error("a1 prefs should be gone")
	}
	if _, err := c.Get(ctx, "agent:a2:prefs"); err != nil {
		t.Error("a2 prefs should survive")
	}
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsCacheMiss(err) {
		t.Fatalf("expected miss, got %v", err)
	}

	payload := map[string]any{"budget": float64(100), "approve": true}
	if err := c.Set(ctx, "prefs", payload, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	v, err := c.Get(ctx, "prefs")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["budget"] != float64(100) || m["approve"] != true {
		t.Errorf("unexpected round-trip value: %#v", v)
	}
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), KeyPrefix: "tf:"}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "agent:a1:prefs", 1, time.Minute)
	c.Set(ctx, "agent:a1:utility", 2, time.Minute)
	c.Set(ctx, "agent:a2:prefs", 3, time.Minute)

	if err := c.DeletePrefix(ctx, "agent:a1:"); err != nil {
		t.Fatalf("delete prefix failed: %v", err)
	}
	if _, err := c.Get(ctx, "agent:a1:utility"); !IsCacheMiss(err) {
		t.Error("a1 keys should be gone")
	}
	if _, err := c.Get(ctx, "agent:a2:prefs"); err != nil {
		t.Errorf("a2 keys should survive: %v", err)
	}
}

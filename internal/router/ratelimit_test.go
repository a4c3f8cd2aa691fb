package router

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Acquire(t *testing.T) {
	cfg := RateLimiterConfig{
		MaxTokens:  3,
		RefillRate: 10, // Fast refill for testing
	}
	limiter := NewRateLimiter(cfg)
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("first acquire should be immediate")
	}

	limiter.TryAcquire()
	limiter.TryAcquire()

	start = time.Now()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond {
		t.Errorf("acquire should wait for refill, elapsed = %v", elapsed)
	}
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	cfg := RateLimiterConfig{
		MaxTokens:  2,
		RefillRate: 0.1,
	}
	limiter := NewRateLimiter(cfg)

	if !limiter.TryAcquire() {
		t.Error("first TryAcquire should succeed")
	}
	if !limiter.TryAcquire() {
		t.Error("second TryAcquire should succeed")
	}
	if limiter.TryAcquire() {
		t.Error("third TryAcquire should fail")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	cfg := RateLimiterConfig{
		MaxTokens:  5,
		RefillRate: 10,
	}
	limiter := NewRateLimiter(cfg)

	for limiter.TryAcquire() {
	}

	if initial := limiter.Available(); initial > 0.5 {
		t.Errorf("Available after drain = %v, want ~0", initial)
	}

	time.Sleep(200 * time.Millisecond)

	available := limiter.Available()
	if available < 1.5 || available > 2.5 {
		t.Errorf("Available after 200ms = %v, want ~2", available)
	}
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	cfg := RateLimiterConfig{
		MaxTokens:  1,
		RefillRate: 0.01,
	}
	limiter := NewRateLimiter(cfg)
	limiter.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRateLimiter_AcquireN(t *testing.T) {
	cfg := RateLimiterConfig{
		MaxTokens:  5,
		RefillRate: 100,
	}
	limiter := NewRateLimiter(cfg)
	ctx := context.Background()

	if err := limiter.AcquireN(ctx, 3); err != nil {
		t.Fatalf("AcquireN() error = %v", err)
	}

	available := limiter.Available()
	if available < 1.5 || available > 2.5 {
		t.Errorf("Available = %v, want ~2", available)
	}
}

func TestRateLimiterRegistry_Get(t *testing.T) {
	registry := NewRateLimiterRegistry()

	claudeLimiter := registry.Get("claude")
	if claudeLimiter.MaxTokens() != 5 {
		t.Errorf("claude MaxTokens = %v, want 5", claudeLimiter.MaxTokens())
	}

	unknownLimiter := registry.Get("unknown")
	if unknownLimiter.MaxTokens() != 10 {
		t.Errorf("unknown MaxTokens = %v, want 10 (default)", unknownLimiter.MaxTokens())
	}

	if registry.Get("claude") != claudeLimiter {
		t.Error("Get should return the same limiter for the same provider")
	}
}

func TestRateLimiterRegistry_SetConfig(t *testing.T) {
	registry := NewRateLimiterRegistry()

	initialMax := registry.Get("claude").MaxTokens()

	registry.SetConfig("claude", RateLimiterConfig{MaxTokens: 20, RefillRate: 2})

	limiter2 := registry.Get("claude")
	if limiter2.MaxTokens() != 20 {
		t.Errorf("MaxTokens = %v, want 20", limiter2.MaxTokens())
	}
	if limiter2.MaxTokens() == initialMax {
		t.Error("config update should change MaxTokens")
	}
}

func TestRateLimiterRegistry_Status(t *testing.T) {
	registry := NewRateLimiterRegistry()
	registry.Get("claude")
	registry.Get("gemini")

	status := registry.Status()
	if len(status) != 2 {
		t.Errorf("len(Status) = %d, want 2", len(status))
	}
	if status["claude"].MaxTokens != 5 {
		t.Errorf("claude MaxTokens = %v, want 5", status["claude"].MaxTokens)
	}
}

func TestRateLimiterRegistry_List(t *testing.T) {
	registry := NewRateLimiterRegistry()

	adapters := registry.List()
	if len(adapters) != 5 {
		t.Errorf("len(List) = %d, want 5", len(adapters))
	}

	expected := map[string]bool{
		"claude": true, "gemini": true, "codex": true,
		"copilot": true, "opencode": true,
	}
	for _, name := range adapters {
		if !expected[name] {
			t.Errorf("unexpected provider: %s", name)
		}
	}
}

func TestAdaptiveRateLimiter_Success(t *testing.T) {
	cfg := RateLimiterConfig{MaxTokens: 10, RefillRate: 1.0}
	limiter := NewAdaptiveRateLimiter(cfg)

	initialRate := limiter.CurrentRefillRate()
	for i := 0; i < 5; i++ {
		limiter.RecordSuccess()
	}

	if newRate := limiter.CurrentRefillRate(); newRate <= initialRate {
		t.Errorf("rate should increase after 5 successes: %v -> %v", initialRate, newRate)
	}
}

func TestAdaptiveRateLimiter_Error(t *testing.T) {
	cfg := RateLimiterConfig{MaxTokens: 10, RefillRate: 1.0}
	limiter := NewAdaptiveRateLimiter(cfg)

	initialRate := limiter.CurrentRefillRate()
	limiter.RecordError()

	newRate := limiter.CurrentRefillRate()
	if newRate >= initialRate {
		t.Errorf("rate should decrease after error: %v -> %v", initialRate, newRate)
	}

	expected := initialRate * 0.5
	if newRate < expected*0.9 || newRate > expected*1.1 {
		t.Errorf("rate = %v, want ~%v", newRate, expected)
	}
}

func TestAdaptiveRateLimiter_MinRate(t *testing.T) {
	cfg := RateLimiterConfig{MaxTokens: 10, RefillRate: 1.0}
	limiter := NewAdaptiveRateLimiter(cfg)

	for i := 0; i < 20; i++ {
		limiter.RecordError()
	}

	minRate := cfg.RefillRate * 0.1
	if rate := limiter.CurrentRefillRate(); rate < minRate {
		t.Errorf("rate = %v, should not go below min = %v", rate, minRate)
	}
}

func TestAdaptiveRateLimiter_MaxRate(t *testing.T) {
	cfg := RateLimiterConfig{MaxTokens: 10, RefillRate: 1.0}
	limiter := NewAdaptiveRateLimiter(cfg)

	for i := 0; i < 100; i++ {
		limiter.RecordSuccess()
	}

	maxRate := cfg.RefillRate * 2
	if rate := limiter.CurrentRefillRate(); rate > maxRate {
		t.Errorf("rate = %v, should not go above max = %v", rate, maxRate)
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.MaxTokens != 10 {
		t.Errorf("MaxTokens = %v, want 10", cfg.MaxTokens)
	}
	if cfg.RefillRate != 1 {
		t.Errorf("RefillRate = %v, want 1", cfg.RefillRate)
	}
}

func TestRateLimiter_MaxTokensCap(t *testing.T) {
	cfg := RateLimiterConfig{MaxTokens: 5, RefillRate: 100}
	limiter := NewRateLimiter(cfg)

	time.Sleep(100 * time.Millisecond)

	if available := limiter.Available(); available > cfg.MaxTokens {
		t.Errorf("Available = %v, should not exceed MaxTokens = %v", available, cfg.MaxTokens)
	}
}

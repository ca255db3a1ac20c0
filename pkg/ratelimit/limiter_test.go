package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLimiter_Unlimited(t *testing.T) {
	tests := []struct {
		name string
		rps  float64
	}{
		{"zero", 0},
		{"negative", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.rps, zerolog.Nop())
			if l != nil {
				t.Fatalf("NewLimiter(%v) = %v, want nil", tt.rps, l)
			}
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("nil limiter Wait() = %v, want nil", err)
			}
			if l.Limit() != 0 {
				t.Errorf("nil limiter Limit() = %v, want 0", l.Limit())
			}
		})
	}
}

func TestLimiter_Paces(t *testing.T) {
	l := NewLimiter(20, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First token is immediate, the next two take 50ms each.
	if elapsed < 80*time.Millisecond {
		t.Errorf("3 requests at 20 rps took %v, want >= 80ms", elapsed)
	}
	if l.Limit() != 20 {
		t.Errorf("Limit() = %v, want 20", l.Limit())
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(0.1, zerolog.Nop())

	// Drain the burst token.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

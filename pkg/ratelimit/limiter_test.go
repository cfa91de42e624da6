package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		window   time.Duration
		expected time.Duration
	}{
		{"reader quota", 20, 60 * time.Second, 3 * time.Second},
		{"ten per second", 10, time.Second, 100 * time.Millisecond},
		{"zero requests falls back", 0, time.Minute, 3 * time.Second},
		{"zero window falls back", 5, 0, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interval(tt.requests, tt.window); got != tt.expected {
				t.Errorf("Interval(%d, %v) = %v, want %v", tt.requests, tt.window, got, tt.expected)
			}
		})
	}
}

func TestLocal_FirstRequestNotDelayed(t *testing.T) {
	limiter := NewLocal(DefaultRequests, DefaultWindow)

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait() took %v, want immediate", elapsed)
	}
	if limiter.Interval() != 3*time.Second {
		t.Errorf("Interval() = %v, want 3s", limiter.Interval())
	}
}

func TestLocal_SpacesConsecutiveRequests(t *testing.T) {
	limiter := NewLocal(10, 500*time.Millisecond) // 50ms apart
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second Wait() returned after %v, want about 50ms", elapsed)
	}
}

func TestLocal_ContextCancelled(t *testing.T) {
	limiter := NewLocal(1, time.Hour)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected error when the next slot is beyond the deadline")
	}
}

var (
	_ Limiter = (*Local)(nil)
	_ Limiter = (*Shared)(nil)
)

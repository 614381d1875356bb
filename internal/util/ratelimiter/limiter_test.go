package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		advances []time.Duration // clock advance before each Allow() call
		want     []bool
	}{
		{
			name:     "first call always allowed",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "second call immediately after is blocked",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0, 0},
			want:     []bool{true, false},
		},
		{
			name:     "call after interval is allowed",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0, 100 * time.Millisecond},
			want:     []bool{true, true},
		},
		{
			name:     "chunks inside one interval publish once",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 10 * time.Millisecond},
			want:     []bool{true, false, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1700000000, 0)}
			limiter := NewWithClock(tt.interval, clock.Now)

			for i, d := range tt.advances {
				clock.Advance(d)

				allowed, wait := limiter.Allow()
				if allowed != tt.want[i] {
					t.Errorf("call %d: Allow() = %v, want %v", i, allowed, tt.want[i])
				}
				if !allowed && wait <= 0 {
					t.Errorf("call %d: blocked but wait = %v, want > 0", i, wait)
				}
				if allowed && wait != 0 {
					t.Errorf("call %d: allowed but wait = %v, want 0", i, wait)
				}
			}
		})
	}
}

func TestLimiter_Mark(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter := NewWithClock(time.Second, clock.Now)

	limiter.Mark()
	if allowed, _ := limiter.Allow(); allowed {
		t.Error("Allow() right after Mark() should be blocked")
	}

	clock.Advance(time.Second)
	if allowed, _ := limiter.Allow(); !allowed {
		t.Error("Allow() one interval after Mark() should be permitted")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(); ok {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 1 {
		t.Errorf("allowed %d times, want 1", allowedCount)
	}
	if limiter.Interval() != time.Hour {
		t.Errorf("Interval() = %v, want 1h", limiter.Interval())
	}
}

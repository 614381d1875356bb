package ratelimiter

import (
	"sync"
	"time"
)

// Limiter allows at most one action per interval. It gates how often a
// transfer publishes progress into its shared status record.
// Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	now         func() time.Time
}

// New creates a new limiter with the specified interval.
// The first call to Allow is always permitted.
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock creates a limiter that reads time from now
func NewWithClock(interval time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		interval: interval,
		now:      now,
	}
}

// Allow reports whether an action is allowed now, recording it if so.
// When rate-limited it returns the remaining wait.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastAllowed)

	if l.lastAllowed.IsZero() || elapsed >= l.interval {
		l.lastAllowed = now
		return true, 0
	}

	return false, l.interval - elapsed
}

// Mark records an action performed outside Allow, restarting the interval
func (l *Limiter) Mark() {
	l.mu.Lock()
	l.lastAllowed = l.now()
	l.mu.Unlock()
}

// Interval returns the configured interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

package token

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter counts failed token consumptions per class session.
type AttemptLimiter interface {
	// Locked reports whether consumption is currently refused for the class.
	Locked(ctx context.Context, classID string) (bool, error)
	// Fail records one mismatched consumption attempt.
	Fail(ctx context.Context, classID string) error
	// Reset clears the counter (new token issued, or token consumed).
	Reset(ctx context.Context, classID string) error
}

type attempts struct {
	count       int
	windowStart time.Time
}

// InMemoryAttemptLimiter keeps counters in process memory. Suitable for a single replica.
type InMemoryAttemptLimiter struct {
	maxAttempts int
	window      time.Duration
	nowFunc     func() time.Time
	attempts    map[string]attempts
	mu          sync.RWMutex
}

var _ AttemptLimiter = (*InMemoryAttemptLimiter)(nil)

// NewInMemoryAttemptLimiter locks a class after maxAttempts failures within window.
func NewInMemoryAttemptLimiter(maxAttempts int, window time.Duration) *InMemoryAttemptLimiter {
	return &InMemoryAttemptLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		nowFunc:     time.Now,
		attempts:    make(map[string]attempts),
	}
}

// WithNowFunc replaces the clock (tests).
func (l *InMemoryAttemptLimiter) WithNowFunc(now func() time.Time) *InMemoryAttemptLimiter {
	l.nowFunc = now
	return l
}

func (l *InMemoryAttemptLimiter) Locked(_ context.Context, classID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.attempts[classID]
	if !ok || l.expired(a) {
		return false, nil
	}
	return a.count >= l.maxAttempts, nil
}

func (l *InMemoryAttemptLimiter) Fail(_ context.Context, classID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.attempts[classID]
	if !ok || l.expired(a) {
		a = attempts{windowStart: l.nowFunc()}
	}
	a.count++
	l.attempts[classID] = a
	return nil
}

func (l *InMemoryAttemptLimiter) Reset(_ context.Context, classID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, classID)
	return nil
}

// Cleanup removes counters whose window has passed.
func (l *InMemoryAttemptLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for classID, a := range l.attempts {
		if l.expired(a) {
			delete(l.attempts, classID)
		}
	}
}

func (l *InMemoryAttemptLimiter) expired(a attempts) bool {
	return l.nowFunc().Sub(a.windowStart) >= l.window
}

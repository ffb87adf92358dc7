package memory

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	expires time.Time
}

// Limiter counts validation attempts per subject. A window opens on the first
// reserved attempt and is not extended by later ones.
type Limiter struct {
	mu       sync.Mutex
	failures map[string]window
	now      func() time.Time
}

func NewLimiter(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{failures: make(map[string]window), now: now}
}

func (l *Limiter) Attempts(_ context.Context, subject string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.current(subject).count, nil
}

// Reserve counts one attempt and returns the count including it.
func (l *Limiter) Reserve(_ context.Context, subject string, ttl time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(subject)
	if w.count == 0 {
		w.expires = l.now().Add(ttl)
	}
	w.count++
	l.failures[subject] = w
	return w.count, nil
}

// Release gives back one reserved attempt. It never drops below zero.
func (l *Limiter) Release(_ context.Context, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(subject)
	if w.count == 0 {
		return nil
	}
	w.count--
	l.failures[subject] = w
	return nil
}

func (l *Limiter) ResetFailures(_ context.Context, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, subject)
	return nil
}

func (l *Limiter) current(subject string) window {
	w, ok := l.failures[subject]
	if !ok || !l.now().Before(w.expires) {
		delete(l.failures, subject)
		return window{}
	}
	return w
}

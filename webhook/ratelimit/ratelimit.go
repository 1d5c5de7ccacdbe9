package ratelimit

import (
	"sync"
	"time"
)

/* Limiter caps webhook requests per provider within a fixed time window.
 * State is process-wide and lives for the process lifetime; a single
 * mutex-guarded counter per provider keeps increments atomic under
 * concurrent ingestion requests.
 */
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	limits       map[string]int
	defaultLimit int
	windowSize   time.Duration

	// now is swappable for tests
	now func() time.Time
}

type window struct {
	startedAt time.Time
	count     int
}

// New creates a limiter allowing defaultLimit requests per provider per
// windowSize. Per-provider overrides are set with SetLimit.
func New(defaultLimit int, windowSize time.Duration) *Limiter {
	return &Limiter{
		windows:      make(map[string]*window),
		limits:       make(map[string]int),
		defaultLimit: defaultLimit,
		windowSize:   windowSize,
		now:          time.Now,
	}
}

// SetLimit overrides the request limit for a single provider.
// A limit of zero or less disables the override.
func (l *Limiter) SetLimit(provider string, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		delete(l.limits, provider)
		return
	}
	l.limits[provider] = limit
}

/* Allow reports whether another request from provider fits in the current
 * window. Once the limit is reached every call returns false until the
 * window rolls over.
 */
func (l *Limiter) Allow(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[provider]
	if !ok || now.Sub(w.startedAt) >= l.windowSize {
		w = &window{startedAt: now}
		l.windows[provider] = w
	}

	limit := l.defaultLimit
	if override, ok := l.limits[provider]; ok {
		limit = override
	}

	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

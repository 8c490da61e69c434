// Package ratelimit provides an in-memory per-client token bucket for the
// gateway. Single-process only; a multi-replica deployment needs a shared
// limiter in front.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	// Operational bounds for the in-memory map.
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientBucket
}

type clientBucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{cfg: cfg, m: make(map[string]*clientBucket)}
}

// Allow reports whether the client identified by key may proceed, and the
// whole-second retry hint when it may not. A zero RPS or Burst disables
// limiting entirely.
func (l *Limiter) Allow(key string, now time.Time) (bool, int) {
	if l.cfg.RPS <= 0 || l.cfg.Burst <= 0 {
		return true, 0
	}
	if key == "" {
		key = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.m[key]
	if b == nil {
		l.evictLocked(now)
		b = &clientBucket{tokens: float64(l.cfg.Burst), last: now}
		l.m[key] = b
	}
	b.lastSeen = now

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(l.cfg.Burst), b.tokens+elapsed*l.cfg.RPS)
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	retry := int(math.Ceil((1 - b.tokens) / l.cfg.RPS))
	if retry < 1 {
		retry = 1
	}
	return false, retry
}

// evictLocked drops expired entries, and when the map is still at capacity,
// refuses to grow by dropping the stalest entry.
func (l *Limiter) evictLocked(now time.Time) {
	if len(l.m) < l.cfg.MaxEntries {
		return
	}
	var (
		oldestKey  string
		oldestSeen time.Time
	)
	for key, b := range l.m {
		if now.Sub(b.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, key)
			continue
		}
		if oldestKey == "" || b.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen = key, b.lastSeen
		}
	}
	if len(l.m) >= l.cfg.MaxEntries && oldestKey != "" {
		delete(l.m, oldestKey)
	}
}

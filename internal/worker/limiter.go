package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter implements per-actor rate limiting for expensive triggers
type Limiter struct {
	limiters     map[string]*actorLimiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	idleExpiry   time.Duration
	now          func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLimiter creates a new rate limiter. Actors idle longer than idleExpiry
// are evicted once Start is running.
func NewLimiter(requestsPerSecond float64, burst int, idleExpiry time.Duration) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	if idleExpiry <= 0 {
		idleExpiry = 10 * time.Minute
	}

	return &Limiter{
		limiters:     make(map[string]*actorLimiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		idleExpiry:   idleExpiry,
		now:          time.Now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the idle-actor cleanup loop until Close is called
func (l *Limiter) Start() {
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.idleExpiry / 2)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.Evict()
			}
		}
	}()
}

// Close stops the cleanup loop started by Start
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Wait blocks until the actor has a token
func (l *Limiter) Wait(ctx context.Context, actor string) error {
	return l.getLimiter(actor).Wait(ctx)
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(actor string) bool {
	return l.getLimiter(actor).Allow()
}

// Evict drops actors idle longer than the expiry. Returns how many were removed.
func (l *Limiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleExpiry)
	removed := 0
	for actor, al := range l.limiters {
		if al.lastSeen.Before(cutoff) {
			delete(l.limiters, actor)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked actors
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) getLimiter(actor string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	al, exists := l.limiters[actor]
	if !exists {
		al = &actorLimiter{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
		l.limiters[actor] = al
	}
	al.lastSeen = l.now()
	return al.limiter
}

// SetActorRate sets a custom rate limit for a specific actor
func (l *Limiter) SetActorRate(actor string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[actor] = &actorLimiter{
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		lastSeen: l.now(),
	}
}

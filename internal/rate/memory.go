package rate

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-process [Limiter]: one {count, windowResetAt}
// entry per identifier, guarded by a single mutex so increment-and-check
// is atomic. State is local to one process instance; multi-instance
// deployments should use [RedisLimiter] instead.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	config  Config

	now      func() time.Time
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter starts a limiter with a background sweep that drops
// expired windows. Stop must be called on shutdown.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		config:  cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow implements [Limiter].
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	// Reset strictly after the window elapses; the boundary instant still
	// belongs to the old window.
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.Window)}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.config.Threshold {
		return Decision{
			Allowed:    false,
			RetryAfter: w.resetAt.Sub(now),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Remaining: l.config.Threshold - w.count,
	}, nil
}

// Stop halts the background sweep. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	<-l.done
}

func (l *MemoryLimiter) sweep() {
	defer close(l.done)

	interval := l.config.Window
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := l.now()
			l.mu.Lock()
			for key, w := range l.windows {
				if now.After(w.resetAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

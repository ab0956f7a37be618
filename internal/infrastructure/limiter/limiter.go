// Package limiter counts one-time code attempts per key within a fixed
// window.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "otp_attempts:"

// Redis keeps counters in Redis so limits hold across instances.
type Redis struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRedis(client *redis.Client, max int, window time.Duration) *Redis {
	return &Redis{client: client, max: int64(max), window: window}
}

// hitScript counts one attempt and starts the window on the first one, so
// concurrent callers never observe the same count.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// Hit records one attempt for key and reports whether it is within the
// limit. The window starts at the first attempt.
func (l *Redis) Hit(ctx context.Context, key string) (bool, error) {
	n, err := hitScript.Run(ctx, l.client, []string{keyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("count attempt: %w", err)
	}
	return n <= l.max, nil
}

func (l *Redis) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

type window struct {
	count   int
	resetAt time.Time
}

// Memory is a single-process limiter used when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

func NewMemory(max int, w time.Duration) *Memory {
	return &Memory{max: max, window: w, entries: make(map[string]*window), now: time.Now}
}

// WithClock replaces the time source.
func (l *Memory) WithClock(now func() time.Time) *Memory {
	l.now = now
	return l
}

func (l *Memory) Hit(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.live(key)
	if e == nil {
		e = &window{resetAt: l.now().Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.max, nil
}

func (l *Memory) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// live returns the entry for key, dropping it once its window has passed.
// Callers hold l.mu.
func (l *Memory) live(key string) *window {
	e, ok := l.entries[key]
	if !ok {
		return nil
	}
	if !l.now().Before(e.resetAt) {
		delete(l.entries, key)
		return nil
	}
	return e
}

// Sweep drops every entry whose window has passed.
func (l *Memory) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// Run sweeps expired entries every interval until ctx is done.
func (l *Memory) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

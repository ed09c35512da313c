package broadcast

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyThrottle enforces a minimum interval per key. Calls inside the window
// are dropped, not queued; the next event for the key carries fresher data
// anyway.
type KeyThrottle struct {
	limiters sync.Map
	interval time.Duration
}

func NewKeyThrottle(interval time.Duration) *KeyThrottle {
	return &KeyThrottle{interval: interval}
}

// Allow reports whether an event for key may go out now.
func (t *KeyThrottle) Allow(key string) bool {
	if t.interval <= 0 {
		return true
	}
	limiter, ok := t.limiters.Load(key)
	if !ok {
		limiter, _ = t.limiters.LoadOrStore(key, rate.NewLimiter(rate.Every(t.interval), 1))
	}
	return limiter.(*rate.Limiter).Allow()
}

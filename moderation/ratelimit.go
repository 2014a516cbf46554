package moderation

import (
	"context"
	"sync"
	"time"
)

// windowLimiter caps calls to at most limit per rolling window. Callers block
// in wait until a slot frees up; the limiter never rejects. Shared by all
// filter workers.
type windowLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	stamps []time.Time // call times inside the window, oldest first
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, window: window}
}

// acquire records a call at now if the window has room, or reports when the
// oldest tracked call slides out.
func (l *windowLimiter) acquire(now time.Time) (ok bool, wakeAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	l.stamps = append(l.stamps[:0], l.stamps[i:]...)

	if len(l.stamps) < l.limit {
		l.stamps = append(l.stamps, now)
		return true, time.Time{}
	}
	return false, l.stamps[0].Add(l.window)
}

// wait blocks until a call slot is available or ctx is done.
func (l *windowLimiter) wait(ctx context.Context) error {
	for {
		now := time.Now()
		ok, wakeAt := l.acquire(now)
		if ok {
			return nil
		}

		d := wakeAt.Sub(now)
		if d < time.Millisecond {
			d = time.Millisecond
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

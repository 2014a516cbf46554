package moderation

import (
	"context"
	"testing"
	"time"
)

func TestWindowLimiter_AcquireUpToLimit(t *testing.T) {
	t.Parallel()

	l := newWindowLimiter(2, time.Minute)
	now := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)

	if ok, _ := l.acquire(now); !ok {
		t.Fatalf("first acquire refused")
	}
	if ok, _ := l.acquire(now); !ok {
		t.Fatalf("second acquire refused")
	}

	ok, wakeAt := l.acquire(now)
	if ok {
		t.Fatalf("third acquire allowed past the limit")
	}
	if want := now.Add(time.Minute); !wakeAt.Equal(want) {
		t.Fatalf("wakeAt=%v, want %v", wakeAt, want)
	}
}

func TestWindowLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	l := newWindowLimiter(2, time.Minute)
	now := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)

	l.acquire(now)
	l.acquire(now.Add(30 * time.Second))
	if ok, _ := l.acquire(now.Add(45 * time.Second)); ok {
		t.Fatalf("acquire allowed while window full")
	}

	// The first call has left the window; one slot is free again.
	if ok, _ := l.acquire(now.Add(61 * time.Second)); !ok {
		t.Fatalf("acquire refused after oldest call expired")
	}
	if ok, _ := l.acquire(now.Add(62 * time.Second)); ok {
		t.Fatalf("acquire allowed; window should be full again")
	}
}

func TestWindowLimiter_WaitBlocksThenProceeds(t *testing.T) {
	t.Parallel()

	const window = 60 * time.Millisecond
	l := newWindowLimiter(1, window)

	start := time.Now()
	if err := l.wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := l.wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < window/2 {
		t.Fatalf("second wait returned after %v, expected blocking near %v", elapsed, window)
	}
}

func TestWindowLimiter_WaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	l := newWindowLimiter(1, time.Hour)
	if err := l.wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.wait(ctx); err == nil {
		t.Fatalf("expected context error while window is full")
	}
}

// Package moderation filters chat messages through a content-scoring backend
// before they reach segmentation. Scoring calls run concurrently under a
// bounded worker pool and a shared rolling-window rate limit; a failed call
// keeps its message (fail-open), while a canceled run aborts as a whole.
// Completion order is irrelevant because the
// pipeline re-sorts messages by timestamp afterwards.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jaylann/wac2j/chatlog"
)

// CategoryScore is one moderation category and the score it was assigned.
type CategoryScore struct {
	Category string
	Score    float64
}

// Result is the outcome of scoring one message. Flags holds the categories
// whose score exceeded the threshold, for logging.
type Result struct {
	Flagged bool
	Flags   []CategoryScore
}

// Moderator scores message content for unsafe material.
type Moderator interface {
	Moderate(ctx context.Context, content string) (Result, error)
}

// Filter defaults.
const (
	DefaultConcurrency = 25
	DefaultCallLimit   = 1000
	DefaultWindow      = time.Minute
)

// FilterOptions controls concurrent moderation of a message batch.
type FilterOptions struct {
	// Concurrency caps in-flight scoring calls (defaults to DefaultConcurrency).
	Concurrency int

	// CallLimit and Window bound the global call rate: at most CallLimit calls
	// per rolling Window across all workers. Workers sleep, not fail, at the cap.
	CallLimit int
	Window    time.Duration

	Logger *slog.Logger
}

// Filter scores every message and returns the ones that passed. Each worker
// owns an independent result slot, so no locking beyond the limiter's is
// needed. Individual call errors are logged and treated as passing, but a
// canceled ctx aborts the whole batch with an error: a partially-scored batch
// must never pass for a moderated one.
func Filter(ctx context.Context, msgs []chatlog.Message, mod Moderator, opts FilterOptions) ([]chatlog.Message, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CallLimit <= 0 {
		opts.CallLimit = DefaultCallLimit
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := newWindowLimiter(opts.CallLimit, opts.Window)
	flagged := make([]bool, len(msgs))

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	for i := range msgs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := limiter.wait(ctx); err != nil {
				return
			}

			res, err := mod.Moderate(ctx, msgs[i].Content)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				opts.Logger.Warn("moderation call failed, keeping message",
					"error", err, "sender", msgs[i].Sender, "content", truncate(msgs[i].Content, 80))
				return
			}
			if res.Flagged {
				flagged[i] = true
				opts.Logger.Debug("message flagged",
					"sender", msgs[i].Sender, "categories", categoryNames(res.Flags))
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("moderation aborted: %w", err)
	}

	kept := make([]chatlog.Message, 0, len(msgs))
	for i, m := range msgs {
		if !flagged[i] {
			kept = append(kept, m)
		}
	}
	opts.Logger.Info("moderation complete",
		"total", len(msgs), "kept", len(kept), "flagged", len(msgs)-len(kept))
	return kept, nil
}

func categoryNames(flags []CategoryScore) []string {
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, f.Category)
	}
	return names
}

// truncate shortens s to at most max runes for log excerpts, never cutting a
// multi-byte character in half.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}

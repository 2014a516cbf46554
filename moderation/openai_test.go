package moderation

import (
	"errors"
	"testing"
)

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", 0.5); err == nil {
		t.Fatalf("expected error for empty API key")
	}
	if _, err := NewClient("sk-test", -0.1); err == nil {
		t.Fatalf("expected error for threshold below 0")
	}
	if _, err := NewClient("sk-test", 1.1); err == nil {
		t.Fatalf("expected error for threshold above 1")
	}
	if _, err := NewClient("sk-test", 0.7); err != nil {
		t.Fatalf("NewClient: %v", err)
	}
}

func TestDecodeCategoryScores(t *testing.T) {
	t.Parallel()

	scores, err := decodeCategoryScores(`{"hate":0.2,"violence":null,"sexual":0.9}`)
	if err != nil {
		t.Fatalf("decodeCategoryScores: %v", err)
	}
	if scores["hate"] != 0.2 {
		t.Fatalf("hate=%v, want 0.2", scores["hate"])
	}
	if scores["violence"] != 0 {
		t.Fatalf("violence=%v, want 0 (null treated as zero)", scores["violence"])
	}
	if scores["sexual"] != 0.9 {
		t.Fatalf("sexual=%v, want 0.9", scores["sexual"])
	}

	if _, err := decodeCategoryScores(""); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if _, err := decodeCategoryScores("not json"); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
}

func TestFlagsAbove(t *testing.T) {
	t.Parallel()

	scores := map[string]float64{
		"violence":   0.95,
		"hate":       0.8,
		"harassment": 0.7,
	}

	flags := flagsAbove(scores, 0.7)
	if len(flags) != 2 {
		t.Fatalf("len(flags)=%d, want 2 (strictly above threshold)", len(flags))
	}
	if flags[0].Category != "hate" || flags[1].Category != "violence" {
		t.Fatalf("flags=%+v, want sorted by category", flags)
	}

	if flags := flagsAbove(scores, 1.0); len(flags) != 0 {
		t.Fatalf("flags=%+v, want none at threshold 1.0", flags)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	if !isRateLimitError(errors.New("HTTP 429 Too Many Requests")) {
		t.Fatalf("429 not classified as rate limit")
	}
	if !isServerError(errors.New("500 internal server error")) {
		t.Fatalf("500 not classified as server error")
	}
	if isRateLimitError(nil) || isServerError(nil) {
		t.Fatalf("nil error misclassified")
	}
	if isRateLimitError(errors.New("bad request")) {
		t.Fatalf("generic error classified as rate limit")
	}
}

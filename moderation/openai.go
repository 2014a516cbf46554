package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client scores content through the OpenAI moderation endpoint. A message is
// flagged when any category score exceeds the threshold; absent or null scores
// count as 0.
type Client struct {
	client    *openai.Client
	threshold float64
}

// NewClient builds a moderation client. threshold must be in [0,1].
func NewClient(apiKey string, threshold float64) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("moderation: API key is empty")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("moderation: threshold %v outside [0,1]", threshold)
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &c, threshold: threshold}, nil
}

// Moderate scores one message's content.
func (c *Client) Moderate(ctx context.Context, content string) (Result, error) {
	resp, err := c.callWithRetry(ctx, content)
	if err != nil {
		return Result{}, err
	}
	if len(resp.Results) == 0 {
		return Result{}, errors.New("moderation: response has no results")
	}

	scores, err := decodeCategoryScores(resp.Results[0].CategoryScores.RawJSON())
	if err != nil {
		return Result{}, err
	}
	flags := flagsAbove(scores, c.threshold)
	return Result{Flagged: len(flags) > 0, Flags: flags}, nil
}

func (c *Client) callWithRetry(ctx context.Context, content string) (*openai.ModerationNewResponse, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes := []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}

	params := openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{
			OfString: openai.String(content),
		},
		Model: openai.ModerationModelOmniModerationLatest,
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := c.client.Moderations.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				if attempt < maxRetries-1 {
					time.Sleep(rateLimitWaitTimes[attempt])
					continue
				}
			} else if isServerError(err) {
				if attempt < maxRetries-1 {
					time.Sleep(serverErrorWaitTimes[attempt])
					continue
				}
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("moderation: failed after %d attempts due to OpenAI API issues", maxRetries)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// decodeCategoryScores reads the category→score map off the raw response.
// Null scores become 0 rather than errors; the endpoint returns null for
// categories it didn't evaluate.
func decodeCategoryScores(raw string) (map[string]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("moderation: empty category scores")
	}
	var scores map[string]*float64
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("moderation: decode category scores: %w", err)
	}
	out := make(map[string]float64, len(scores))
	for category, score := range scores {
		if score != nil {
			out[category] = *score
		} else {
			out[category] = 0
		}
	}
	return out, nil
}

// flagsAbove collects the categories scoring strictly above threshold, sorted
// by name so log output is stable.
func flagsAbove(scores map[string]float64, threshold float64) []CategoryScore {
	var flags []CategoryScore
	for category, score := range scores {
		if score > threshold {
			flags = append(flags, CategoryScore{Category: category, Score: score})
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Category < flags[j].Category })
	return flags
}

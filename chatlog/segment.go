package chatlog

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Segmentation defaults. Override via SegmentOptions when a dataset needs
// different cuts.
const (
	DefaultMaxGap       = 6 * time.Hour
	DefaultCarryLimit   = 10
	DefaultTurnOverhead = 7
)

// SegmentOptions controls how sorted messages are grouped into conversations.
type SegmentOptions struct {
	// SystemPrompt is prepended as the system turn of every emitted conversation.
	SystemPrompt string

	// AssistantName classifies messages: sender == AssistantName is the
	// assistant, everyone else is a user. Required.
	AssistantName string

	// MaxChars is the character budget per conversation. Exceeding it closes
	// the conversation at the next check; a single oversized turn is still
	// emitted whole. Required, > 0.
	MaxChars int

	// MaxGap forces a conversation boundary when consecutive runs are further
	// apart than this (defaults to DefaultMaxGap).
	MaxGap time.Duration

	// CarryLimit caps how many trailing user turns of the previous conversation
	// seed a new conversation that opens with an assistant run (defaults to
	// DefaultCarryLimit).
	CarryLimit int

	// TurnOverhead is added to the character budget per formatted turn
	// (defaults to DefaultTurnOverhead).
	TurnOverhead int

	Logger *slog.Logger
}

// anonContext tracks sender pseudonyms and the running character budget for
// one segmentation run. A sender always maps to the same pseudonym within a
// run; the assistant's name is never anonymized.
type anonContext struct {
	personIndex int
	personMap   map[string]string
	totalChars  int
}

func newAnonContext() *anonContext {
	return &anonContext{personIndex: 1, personMap: make(map[string]string)}
}

// pseudonym returns the stable replacement name for sender, assigning
// "Person<N>" on first sight.
func (c *anonContext) pseudonym(sender, assistantName string) string {
	if sender == assistantName {
		return sender
	}
	p, ok := c.personMap[sender]
	if !ok {
		p = "Person" + strconv.Itoa(c.personIndex)
		c.personMap[sender] = p
		c.personIndex++
	}
	return p
}

// run is a maximal consecutive stretch of messages that are all from the
// assistant or all from other senders.
type run struct {
	assistant bool
	msgs      []Message
}

func splitRuns(msgs []Message, assistantName string) []run {
	var runs []run
	for _, m := range msgs {
		isAssistant := m.Sender == assistantName
		if len(runs) > 0 && runs[len(runs)-1].assistant == isAssistant {
			last := &runs[len(runs)-1]
			last.msgs = append(last.msgs, m)
			continue
		}
		runs = append(runs, run{assistant: isAssistant, msgs: []Message{m}})
	}
	return runs
}

type segmenter struct {
	opts SegmentOptions
	anon *anonContext

	current       []Turn    // pending turns, not yet finalized
	grouped       []Message // buffered consecutive user messages
	lastTimestamp time.Time
	conversations []Conversation
}

// Segment groups timestamp-sorted messages into bounded, role-alternating
// conversations. State carried across the whole input: the pending turn list,
// the buffered user messages, the last run timestamp, and the anonymization
// context. Empty input yields an empty list.
func Segment(msgs []Message, opts SegmentOptions) ([]Conversation, error) {
	if opts.AssistantName == "" {
		return nil, errors.New("Segment: AssistantName is empty")
	}
	if opts.MaxChars <= 0 {
		return nil, errors.New("Segment: MaxChars must be > 0")
	}
	if opts.MaxGap <= 0 {
		opts.MaxGap = DefaultMaxGap
	}
	if opts.CarryLimit <= 0 {
		opts.CarryLimit = DefaultCarryLimit
	}
	if opts.TurnOverhead == 0 {
		opts.TurnOverhead = DefaultTurnOverhead
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &segmenter{opts: opts, anon: newAnonContext()}
	for _, r := range splitRuns(msgs, opts.AssistantName) {
		s.consumeRun(r)
	}

	// Trailing user messages never met an assistant run; fold them into a final
	// turn so finalize can carry them (and drop them, there being no next
	// conversation).
	s.flushUsers()
	s.finalize()
	return s.conversations, nil
}

func (s *segmenter) consumeRun(r run) {
	first := r.msgs[0].Timestamp

	if !s.lastTimestamp.IsZero() && first.Sub(s.lastTimestamp) > s.opts.MaxGap {
		s.opts.Logger.Debug("time gap exceeded, closing conversation",
			"gap", first.Sub(s.lastTimestamp), "at", first)
		s.flushUsers()
		s.finalize()
	}

	// An assistant reply that opens a fresh conversation right after a boundary
	// keeps context: seed with the previous conversation's trailing user turns.
	if len(s.current) == 0 && r.assistant && len(s.conversations) > 0 && len(s.grouped) == 0 {
		prev := s.conversations[len(s.conversations)-1]
		s.current = append(s.current, trailingUserTurns(prev, s.opts.CarryLimit)...)
	}

	if r.assistant {
		s.flushUsers()
		s.current = append(s.current, s.formatTurn(r.msgs, RoleAssistant))
	} else {
		s.grouped = append(s.grouped, r.msgs...)
	}

	s.lastTimestamp = r.msgs[len(r.msgs)-1].Timestamp

	if s.anon.totalChars > s.opts.MaxChars {
		s.opts.Logger.Debug("character budget exceeded, closing conversation",
			"total_chars", s.anon.totalChars, "max_chars", s.opts.MaxChars)
		s.finalize()
		s.anon.totalChars = 0
	}
}

// flushUsers folds the buffered user messages into one user turn.
func (s *segmenter) flushUsers() {
	if len(s.grouped) == 0 {
		return
	}
	s.current = append(s.current, s.formatTurn(s.grouped, RoleUser))
	s.grouped = s.grouped[:0]
}

// formatTurn joins a same-role message run into one turn. User lines keep a
// "Name: " prefix with the sender anonymized; assistant lines carry bare
// content with any leading assistant-name prefix stripped. Counts toward the
// character budget.
func (s *segmenter) formatTurn(msgs []Message, role string) Turn {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(strings.TrimPrefix(m.Content, s.opts.AssistantName+": "))
		if role == RoleUser {
			lines = append(lines, s.anon.pseudonym(m.Sender, s.opts.AssistantName)+": "+content)
		} else {
			lines = append(lines, content)
		}
	}
	content := strings.Join(lines, "\n")
	s.anon.totalChars += utf8.RuneCountInString(content) + s.opts.TurnOverhead

	t := Turn{Role: role, Content: content}
	if role == RoleAssistant {
		t.Weight = 1
	}
	return t
}

// trailingUserTurns returns up to limit user turns from the tail of prev, in
// chronological order. The scan walks backward, stops at the first assistant
// turn, and never includes the leading system turn.
func trailingUserTurns(prev Conversation, limit int) []Turn {
	msgs := prev.Messages
	var rev []Turn
	for i := len(msgs) - 1; i >= 1; i-- {
		if msgs[i].Role == RoleAssistant {
			break
		}
		rev = append(rev, msgs[i])
	}
	if len(rev) > limit {
		rev = rev[:limit]
	}
	out := make([]Turn, len(rev))
	for i, t := range rev {
		out[len(rev)-1-i] = t
	}
	return out
}

// finalize commits the pending turns as a conversation. Non-assistant turns
// with no assistant turn after them are not emitted; they stay behind as the
// seed of the next conversation. A conversation is only emitted when it holds
// at least one assistant turn, and it always opens with the system prompt.
func (s *segmenter) finalize() {
	var carry []Turn
	var kept []Turn
	hasAssistant := false
	for _, t := range s.current {
		if t.Role != RoleAssistant {
			carry = append(carry, t)
			continue
		}
		kept = append(kept, carry...)
		kept = append(kept, t)
		carry = nil
		hasAssistant = true
	}

	if hasAssistant && len(kept) > 0 {
		msgs := make([]Turn, 0, len(kept)+1)
		msgs = append(msgs, Turn{Role: RoleSystem, Content: s.opts.SystemPrompt})
		msgs = append(msgs, kept...)
		s.conversations = append(s.conversations, Conversation{Messages: msgs})
	}

	s.current = carry
}

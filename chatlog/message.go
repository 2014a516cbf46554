package chatlog

import (
	"sort"
	"time"
)

// Message is a single chat-log entry: who sent it, when, and what they wrote.
// Continuation lines in the export are merged into Content before a message
// leaves the parser; nothing mutates a Message after that.
type Message struct {
	Sender    string
	Timestamp time.Time
	Content   string
}

// Roles used in emitted conversation records.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one formatted entry of an emitted conversation. Weight is set to 1 on
// assistant turns and omitted from the serialized form everywhere else.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Weight  int    `json:"weight,omitempty"`
}

// Conversation is an ordered list of turns. Each emitted conversation starts
// with a system turn and contains at least one assistant turn; it serializes
// as one JSON object per output line.
type Conversation struct {
	Messages []Turn `json:"messages"`
}

// SortByTimestamp returns a copy of msgs ordered by timestamp. The sort is
// stable, so messages sharing a timestamp keep their file order.
func SortByTimestamp(msgs []Message) []Message {
	out := append([]Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

package chatlog

import "strings"

// Pair collapses each conversation into a single exchange: the system prompt,
// one user turn holding every original user turn joined by newline, and the
// last assistant turn verbatim (weight included). Conversations missing either
// role are dropped. Pure transform; running it on its own output is a no-op.
func Pair(convs []Conversation, systemPrompt string) []Conversation {
	paired := make([]Conversation, 0, len(convs))
	for _, conv := range convs {
		var userParts []string
		var lastAssistant Turn
		hasAssistant := false
		for _, t := range conv.Messages {
			switch t.Role {
			case RoleUser:
				userParts = append(userParts, t.Content)
			case RoleAssistant:
				lastAssistant = t
				hasAssistant = true
			}
		}
		if len(userParts) == 0 || !hasAssistant {
			continue
		}
		paired = append(paired, Conversation{Messages: []Turn{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: strings.Join(userParts, "\n")},
			lastAssistant,
		}})
	}
	return paired
}

package chatlog

import "testing"

func TestPair_CollapsesToSingleExchange(t *testing.T) {
	t.Parallel()

	convs := []Conversation{{Messages: []Turn{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "Person1: Hi"},
		{Role: RoleAssistant, Content: "Hello", Weight: 1},
		{Role: RoleUser, Content: "Person1: How are you?"},
		{Role: RoleAssistant, Content: "Good!", Weight: 1},
	}}}

	paired := Pair(convs, "sys")
	if len(paired) != 1 {
		t.Fatalf("len(paired)=%d, want 1", len(paired))
	}
	got := paired[0].Messages
	if len(got) != 3 {
		t.Fatalf("len(turns)=%d, want 3", len(got))
	}
	if got[0] != (Turn{Role: RoleSystem, Content: "sys"}) {
		t.Fatalf("turn0=%+v", got[0])
	}
	if got[1] != (Turn{Role: RoleUser, Content: "Person1: Hi\nPerson1: How are you?"}) {
		t.Fatalf("turn1=%+v, want joined user turns", got[1])
	}
	if got[2] != (Turn{Role: RoleAssistant, Content: "Good!", Weight: 1}) {
		t.Fatalf("turn2=%+v, want last assistant turn with weight", got[2])
	}
}

func TestPair_DropsConversationsMissingARole(t *testing.T) {
	t.Parallel()

	convs := []Conversation{
		{Messages: []Turn{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "only me"},
		}},
		{Messages: []Turn{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleAssistant, Content: "only bot", Weight: 1},
		}},
	}

	if paired := Pair(convs, "sys"); len(paired) != 0 {
		t.Fatalf("len(paired)=%d, want 0", len(paired))
	}
}

func TestPair_Idempotent(t *testing.T) {
	t.Parallel()

	convs := []Conversation{{Messages: []Turn{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "a\nb"},
		{Role: RoleAssistant, Content: "c", Weight: 1},
	}}}

	once := Pair(convs, "sys")
	twice := Pair(once, "sys")
	if len(once) != 1 || len(twice) != 1 {
		t.Fatalf("len(once)=%d len(twice)=%d, want 1,1", len(once), len(twice))
	}
	for i := range once[0].Messages {
		if once[0].Messages[i] != twice[0].Messages[i] {
			t.Fatalf("turn %d changed on second pass: %+v vs %+v", i, once[0].Messages[i], twice[0].Messages[i])
		}
	}
}

func TestPair_EmptyInput(t *testing.T) {
	t.Parallel()

	if paired := Pair(nil, "sys"); len(paired) != 0 {
		t.Fatalf("len(paired)=%d, want 0", len(paired))
	}
}

package domain

// ConversationState flows through the workflow graph. Nodes treat it as a
// value: they return a new state instead of mutating the one they were given.
type ConversationState struct {
	Messages           []ChatMessage
	SelectedCapability string
	Rationale          string
	Source             Source
	InputText          string
	ThreadID           int64
	PriorTurns         []MemoryEntry
}

// NewConversationState starts a state for one request.
func NewConversationState(input string, threadID int64, prior []MemoryEntry) ConversationState {
	return ConversationState{
		InputText:  input,
		ThreadID:   threadID,
		PriorTurns: append([]MemoryEntry(nil), prior...),
	}
}

// WithMessage returns a copy of s with msg appended. The receiver's message
// slice is never shared with the result.
func (s ConversationState) WithMessage(msg ChatMessage) ConversationState {
	msgs := make([]ChatMessage, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, msg)
	return s
}

// WithDecision returns a copy of s carrying the routing decision.
func (s ConversationState) WithDecision(d RoutingDecision) ConversationState {
	s.SelectedCapability = d.Capability
	s.Rationale = d.Rationale
	s.Source = d.Source
	return s
}

// LastResponse returns the content of the most recent assistant message.
func (s ConversationState) LastResponse() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

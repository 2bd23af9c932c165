package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleSelector tags the routing announcement the selector adds to a transcript.
	RoleSelector = "selector"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// workflow transcript and the LLM integrations. Name carries the capability
// that produced an assistant message.
type ChatMessage struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ChatRequest is a single oracle invocation.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float32
	// Schema, when set, asks the provider for a JSON object of this shape.
	Schema *ResponseSchema
}

// ResponseSchema describes a flat JSON object of string properties.
type ResponseSchema struct {
	Name       string
	Properties []SchemaProperty
}

type SchemaProperty struct {
	Name        string
	Description string
	Enum        []string
}

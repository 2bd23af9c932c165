package usecase

import (
	"strings"

	"worldbuilder-agent/internal/domain"
)

const (
	noPriorStory       = "No prior story yet."
	noResponseFallback = "No response generated"
)

// buildHandlerMessages renders a capability's template for one request.
// Story-aware capabilities also see the thread's window as prior turns.
func buildHandlerMessages(c domain.Capability, state domain.ConversationState) []domain.ChatMessage {
	story := ""
	if c.UsesStory {
		story = storySoFar(state.PriorTurns)
	}
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: renderTemplate(c.PromptTemplate, state.InputText, story)},
	}
	if c.UsesStory {
		for _, turn := range state.PriorTurns {
			messages = append(messages, memoryToPromptMessages(turn)...)
		}
	}
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: state.InputText})
}

func renderTemplate(tmpl, input, story string) string {
	return strings.NewReplacer(
		domain.PlaceholderInput, input,
		domain.PlaceholderStory, story,
	).Replace(tmpl)
}

func storySoFar(turns []domain.MemoryEntry) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if r := strings.TrimSpace(t.Response); r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		return noPriorStory
	}
	return strings.Join(parts, "\n\n")
}

func memoryToPromptMessages(e domain.MemoryEntry) []domain.ChatMessage {
	prompt := strings.TrimSpace(e.Prompt)
	response := strings.TrimSpace(e.Response)
	if prompt == "" || response == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: prompt},
		{Role: domain.RoleAssistant, Name: e.Capability, Content: response},
	}
}

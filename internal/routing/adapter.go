package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"worldbuilder-agent/internal/domain"
)

// LLMClient is the oracle boundary shared by the selector and the handlers.
type LLMClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// OracleAdapter asks the oracle to classify a request against the catalog.
type OracleAdapter struct {
	llm         LLMClient
	model       string
	temperature float32
	logger      *zap.Logger
}

type AdapterOption func(*OracleAdapter)

func WithTemperature(t float32) AdapterOption {
	return func(a *OracleAdapter) {
		a.temperature = t
	}
}

func WithAdapterLogger(l *zap.Logger) AdapterOption {
	return func(a *OracleAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewOracleAdapter(llm LLMClient, model string, opts ...AdapterOption) (*OracleAdapter, error) {
	if llm == nil {
		return nil, errors.New("routing: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("routing: selector model must not be empty")
	}
	a := &OracleAdapter{llm: llm, model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Classify returns the oracle's raw answer. Transport and auth failures are
// wrapped with domain.ErrOracleUnavailable.
func (a *OracleAdapter) Classify(ctx context.Context, req domain.RoutingRequest, catalog Catalog) (string, error) {
	caps := catalog.List()
	for _, c := range caps {
		a.logger.Debug("capability available", zap.String("capability", c.Name), zap.String("description", c.Description))
	}

	raw, err := a.llm.Chat(ctx, domain.ChatRequest{
		Model:       a.model,
		Messages:    buildSelectionMessages(req.InputText, caps),
		Temperature: a.temperature,
		Schema:      selectionSchema(catalog.Names()),
	})
	if err != nil {
		a.logger.Error("selection oracle call failed", zap.Error(err))
		return "", fmt.Errorf("routing: classify: %w: %w", domain.ErrOracleUnavailable, err)
	}
	return raw, nil
}

func buildSelectionMessages(input string, caps []domain.Capability) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSelectionPrompt(caps)},
		{Role: domain.RoleUser, Content: "Please analyze this request and select the best capability: " + input},
	}
}

func buildSelectionPrompt(caps []domain.Capability) string {
	var b strings.Builder
	b.WriteString("You are an intelligent request router with a deep understanding of request types and specialist capabilities.\n\n")
	b.WriteString("Available capabilities and their specializations:\n")
	for i, c := range caps {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, c.Name, c.Description)
	}

	b.WriteString("\nCRITICAL: Respond with ONLY valid JSON in this EXACT format:\n")
	for i, c := range caps {
		if i > 0 {
			b.WriteString("OR\n")
		}
		fmt.Fprintf(&b, "{\"chosenCapability\": %q, \"rationale\": \"your reason here\"}\n", c.Name)
	}

	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- chosenCapability must be exactly one of: %s\n", quotedNames(caps))
	b.WriteString("- No text before or after the JSON\n")
	b.WriteString("- Use double quotes for all strings\n")
	b.WriteString("- No trailing commas\n")
	b.WriteString("\nWhen a request fits several capabilities, choose the one whose core strength matches the primary need.")
	return b.String()
}

func quotedNames(caps []domain.Capability) string {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, fmt.Sprintf("%q", c.Name))
	}
	return strings.Join(names, ", ")
}

func selectionSchema(names []string) *domain.ResponseSchema {
	return &domain.ResponseSchema{
		Name: "routing_decision",
		Properties: []domain.SchemaProperty{
			{Name: fieldChosenCapability, Description: "Name of the selected capability.", Enum: names},
			{Name: fieldRationale, Description: "Why the capability fits the request."},
		},
	}
}

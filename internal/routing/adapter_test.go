package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/registry"
)

type capturingLLM struct {
	answer   string
	err      error
	captured domain.ChatRequest
	calls    int
}

func (c *capturingLLM) Chat(_ context.Context, req domain.ChatRequest) (string, error) {
	c.calls++
	c.captured = req
	return c.answer, c.err
}

func TestNewOracleAdapter_ValidatesDependencies(t *testing.T) {
	_, err := NewOracleAdapter(nil, "gemini-2.0-flash-lite")
	require.Error(t, err)

	_, err = NewOracleAdapter(&capturingLLM{}, " ")
	require.Error(t, err)
}

func TestClassify_BuildsSelectionPrompt(t *testing.T) {
	llm := &capturingLLM{answer: `{"chosenCapability":"LoreAgent","rationale":"myth"}`}
	a, err := NewOracleAdapter(llm, "gemini-2.0-flash-lite", WithTemperature(0))
	require.NoError(t, err)

	reg := registry.Builtin()
	raw, err := a.Classify(context.Background(), domain.RoutingRequest{InputText: "Who founded the first city?"}, reg)
	require.NoError(t, err)
	require.Equal(t, llm.answer, raw)

	req := llm.captured
	require.Equal(t, "gemini-2.0-flash-lite", req.Model)
	require.Len(t, req.Messages, 2)
	require.Equal(t, domain.RoleSystem, req.Messages[0].Role)
	for _, c := range reg.List() {
		require.Contains(t, req.Messages[0].Content, c.Name+": "+c.Description)
		require.Contains(t, req.Messages[0].Content, `{"chosenCapability": "`+c.Name+`"`)
	}
	require.Contains(t, req.Messages[0].Content, "No text before or after the JSON")
	require.Equal(t, domain.RoleUser, req.Messages[1].Role)
	require.Contains(t, req.Messages[1].Content, "Who founded the first city?")

	require.NotNil(t, req.Schema)
	require.Equal(t, "routing_decision", req.Schema.Name)
	require.Equal(t, reg.Names(), req.Schema.Properties[0].Enum)
	require.Equal(t, "rationale", req.Schema.Properties[1].Name)
}

func TestClassify_OracleErrorIsUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	a, err := NewOracleAdapter(&capturingLLM{err: cause}, "m")
	require.NoError(t, err)

	_, err = a.Classify(context.Background(), domain.RoutingRequest{InputText: "x"}, registry.Builtin())
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
	require.ErrorIs(t, err, cause)
}

func TestBuildSelectionPrompt_NumbersCapabilities(t *testing.T) {
	prompt := buildSelectionPrompt(registry.Catalog())
	require.Contains(t, prompt, "1. GeographyAgent:")
	require.Contains(t, prompt, "5. PoliticsAgent:")
	require.Contains(t, prompt, `"GeographyAgent", "CultureAgent", "LoreAgent", "EconomicsAgent", "PoliticsAgent"`)
}

package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/registry"
)

func TestParse_ValidResponse(t *testing.T) {
	d, err := Parse(`{"chosenCapability":"EconomicsAgent","rationale":"trade focus"}`, registry.Builtin())
	require.NoError(t, err)
	require.Equal(t, domain.RoutingDecision{
		Capability: registry.Economics,
		Rationale:  "trade focus",
		Source:     domain.SourceOracle,
	}, d)
}

func TestParse_RepairsCodeFence(t *testing.T) {
	raw := "```json\n{\"chosenCapability\": \"LoreAgent\", \"rationale\": \"myth\"}\n```"
	d, err := Parse(raw, registry.Builtin())
	require.NoError(t, err)
	require.Equal(t, registry.Lore, d.Capability)

	d, err = Parse("  ```\n{\"chosenCapability\":\"CultureAgent\",\"rationale\":\"people\"}```  ", registry.Builtin())
	require.NoError(t, err)
	require.Equal(t, registry.Culture, d.Capability)
}

func TestParse_TrimsFieldWhitespace(t *testing.T) {
	d, err := Parse(`{"chosenCapability":" PoliticsAgent ","rationale":" power "}`, registry.Builtin())
	require.NoError(t, err)
	require.Equal(t, registry.Politics, d.Capability)
	require.Equal(t, "power", d.Rationale)
}

func TestParse_Failures(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		target  error
		contain string
	}{
		{"empty", "   ", domain.ErrMalformedResponse, "empty response"},
		{"not json", "I pick geography", domain.ErrMalformedResponse, "decode"},
		{"missing rationale", `{"chosenCapability":"LoreAgent"}`, domain.ErrMalformedResponse, "missing field rationale"},
		{"missing capability", `{"rationale":"because"}`, domain.ErrMalformedResponse, "missing field chosenCapability"},
		{"blank capability", `{"chosenCapability":"  ","rationale":"because"}`, domain.ErrMalformedResponse, "empty field chosenCapability"},
		{"unknown field", `{"chosenCapability":"LoreAgent","rationale":"x","confidence":0.9}`, domain.ErrMalformedResponse, "unknown field"},
		{"legacy shape", `{"selected_agent":"LoreAgent","reasoning":"x"}`, domain.ErrMalformedResponse, "unknown field"},
		{"multiple values", `{"chosenCapability":"LoreAgent","rationale":"x"} {}`, domain.ErrMalformedResponse, "multiple JSON values"},
		{"trailing garbage", `{"chosenCapability":"LoreAgent","rationale":"x"} nope`, domain.ErrMalformedResponse, "trailing data"},
		{"array", `["LoreAgent"]`, domain.ErrMalformedResponse, "decode"},
		{"unknown capability", `{"chosenCapability":"WeatherAgent","rationale":"rain"}`, domain.ErrUnknownCapability, "WeatherAgent"},
		{"wrong case", `{"chosenCapability":"loreagent","rationale":"x"}`, domain.ErrUnknownCapability, "loreagent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw, registry.Builtin())
			require.ErrorIs(t, err, tc.target)
			require.ErrorContains(t, err, tc.contain)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	require.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
}

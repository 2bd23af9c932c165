package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"worldbuilder-agent/internal/domain"
)

const (
	fieldChosenCapability = "chosenCapability"
	fieldRationale        = "rationale"
)

type selectionResponse struct {
	ChosenCapability *string `json:"chosenCapability"`
	Rationale        *string `json:"rationale"`
}

// Parse decodes the oracle's answer into a decision. Structural problems
// wrap domain.ErrMalformedResponse; a name missing from the catalog wraps
// domain.ErrUnknownCapability.
func Parse(raw string, catalog Catalog) (domain.RoutingDecision, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return domain.RoutingDecision{}, fmt.Errorf("%w: empty response", domain.ErrMalformedResponse)
	}

	var out selectionResponse
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return domain.RoutingDecision{}, fmt.Errorf("%w: decode: %v", domain.ErrMalformedResponse, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return domain.RoutingDecision{}, fmt.Errorf("%w: multiple JSON values", domain.ErrMalformedResponse)
		}
		return domain.RoutingDecision{}, fmt.Errorf("%w: trailing data: %v", domain.ErrMalformedResponse, err)
	}

	name, err := requiredField(fieldChosenCapability, out.ChosenCapability)
	if err != nil {
		return domain.RoutingDecision{}, err
	}
	rationale, err := requiredField(fieldRationale, out.Rationale)
	if err != nil {
		return domain.RoutingDecision{}, err
	}
	if !catalog.Has(name) {
		return domain.RoutingDecision{}, fmt.Errorf("%w: %q", domain.ErrUnknownCapability, name)
	}

	return domain.RoutingDecision{
		Capability: name,
		Rationale:  rationale,
		Source:     domain.SourceOracle,
	}, nil
}

func requiredField(name string, v *string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: missing field %s", domain.ErrMalformedResponse, name)
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", fmt.Errorf("%w: empty field %s", domain.ErrMalformedResponse, name)
	}
	return s, nil
}

// stripCodeFence removes a Markdown code fence some models wrap JSON in.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	if i := strings.IndexByte(body, '\n'); i >= 0 && !strings.HasPrefix(strings.TrimSpace(body[:i]), "{") {
		body = body[i+1:]
	}
	return strings.TrimSpace(body)
}

package domain

import "errors"

// Source records which path produced a routing decision.
type Source string

const (
	SourceOracle   Source = "ORACLE"
	SourceFallback Source = "FALLBACK"
)

var (
	ErrUnknownCapability    = errors.New("unknown capability")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrOracleUnavailable    = errors.New("oracle unavailable")
	ErrUnroutableCapability = errors.New("unroutable capability")
	ErrEmptyInput           = errors.New("empty input")
)

// RoutingRequest is the read-only input to capability selection.
type RoutingRequest struct {
	InputText string
	ThreadID  int64
	// PriorTurns is ordered most-recent-last.
	PriorTurns []MemoryEntry
}

// RoutingDecision is produced exactly once per request by the selector.
type RoutingDecision struct {
	Capability string
	Rationale  string
	Source     Source
}

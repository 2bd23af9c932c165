// Package routing selects the capability that should answer a request: it
// consults the oracle, validates its answer and falls back to keyword
// scoring when the answer is unusable.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"worldbuilder-agent/internal/domain"
)

const fallbackRationalePrefix = "Fallback selection due to parsing error: "

// OracleClassifier returns the oracle's raw classification of a request.
type OracleClassifier interface {
	Classify(ctx context.Context, req domain.RoutingRequest, catalog Catalog) (string, error)
}

// Selector turns a request into exactly one routing decision.
type Selector struct {
	oracle   OracleClassifier
	catalog  Catalog
	fallback KeywordClassifier
	logger   *zap.Logger
}

func NewSelector(oracle OracleClassifier, catalog Catalog, logger *zap.Logger) (*Selector, error) {
	if oracle == nil {
		return nil, errors.New("routing: oracle classifier must not be nil")
	}
	if catalog == nil || len(catalog.Names()) == 0 {
		return nil, errors.New("routing: catalog must contain at least one capability")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{oracle: oracle, catalog: catalog, logger: logger}, nil
}

// Select classifies req. Parsing failures are recovered with the keyword
// classifier; oracle failures are returned and wrap domain.ErrOracleUnavailable.
func (s *Selector) Select(ctx context.Context, req domain.RoutingRequest) (domain.RoutingDecision, error) {
	if strings.TrimSpace(req.InputText) == "" {
		return domain.RoutingDecision{}, domain.ErrEmptyInput
	}

	raw, err := s.oracle.Classify(ctx, req, s.catalog)
	if err != nil {
		if !errors.Is(err, domain.ErrOracleUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
		}
		return domain.RoutingDecision{}, fmt.Errorf("routing: select: %w", err)
	}

	decision, err := Parse(raw, s.catalog)
	if err != nil {
		name := s.fallback.Classify(req.InputText, s.catalog)
		s.logger.Warn("oracle answer rejected, using keyword fallback",
			zap.Error(err),
			zap.String("capability", name),
			zap.Int64("thread_id", req.ThreadID),
		)
		return domain.RoutingDecision{
			Capability: name,
			Rationale:  fallbackRationalePrefix + err.Error(),
			Source:     domain.SourceFallback,
		}, nil
	}

	s.logger.Info("capability selected",
		zap.String("capability", decision.Capability),
		zap.String("source", string(decision.Source)),
		zap.Int64("thread_id", req.ThreadID),
	)
	return decision, nil
}

// Node is the workflow entry node. A state without input text is returned
// unchanged; otherwise the decision is recorded and announced in the
// transcript.
func (s *Selector) Node(ctx context.Context, state domain.ConversationState) (domain.ConversationState, error) {
	decision, err := s.Select(ctx, domain.RoutingRequest{
		InputText:  state.InputText,
		ThreadID:   state.ThreadID,
		PriorTurns: state.PriorTurns,
	})
	if errors.Is(err, domain.ErrEmptyInput) {
		s.logger.Warn("selector received empty input, skipping routing", zap.Int64("thread_id", state.ThreadID))
		return state, nil
	}
	if err != nil {
		return state, err
	}

	return state.WithDecision(decision).WithMessage(domain.ChatMessage{
		Role:    domain.RoleSelector,
		Content: fmt.Sprintf("Selected %s: %s", decision.Capability, decision.Rationale),
	}), nil
}

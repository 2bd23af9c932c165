package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/workflow"
)

const (
	defaultMaxInput = 2000
	defaultThreadID = 1
	selectorNode    = "selector"
	outcomeOK       = "ok"
)

type LLMClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// Catalog is the slice of the capability registry the service needs.
type Catalog interface {
	List() []domain.Capability
	Names() []string
}

// SelectorNode is the workflow entry node that records a routing decision.
type SelectorNode interface {
	Node(ctx context.Context, state domain.ConversationState) (domain.ConversationState, error)
}

type Memory interface {
	Window(threadID int64) []domain.MemoryEntry
	Append(threadID int64, e domain.MemoryEntry) int
}

// TurnRecorder receives every completed turn. Failures never fail the request.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, turn domain.TurnRecord) error
}

// Observer is notified of request outcomes and routing decisions.
type Observer interface {
	ObserveDecision(capability string, source domain.Source)
	ObserveRequest(outcome string)
}

type RouteService struct {
	llm          LLMClient
	memory       Memory
	engine       *workflow.Engine
	handlerModel string
	temperature  float32
	maxInputLen  int
	timeout      time.Duration
	turns        TurnRecorder
	observer     Observer
	logger       *zap.Logger
	now          func() time.Time
}

type RouteInput struct {
	Input    string
	ThreadID int64
}

type RouteOutput struct {
	Response           string               `json:"response"`
	SelectedCapability string               `json:"selectedCapability"`
	Rationale          string               `json:"rationale"`
	Source             domain.Source        `json:"source"`
	Transcript         []domain.ChatMessage `json:"transcript"`
	ThreadID           int64                `json:"threadId"`
	MemoryCount        int                  `json:"memoryCount"`
	TurnID             string               `json:"turnId"`
	Trace              []workflow.Status    `json:"trace"`
}

type Option func(*RouteService)

// WithMaxInputLength caps the trimmed input length in characters.
func WithMaxInputLength(n int) Option {
	return func(s *RouteService) {
		if n > 0 {
			s.maxInputLen = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(s *RouteService) { s.temperature = t }
}

// WithTimeout bounds a whole request, both oracle calls included.
func WithTimeout(d time.Duration) Option {
	return func(s *RouteService) { s.timeout = d }
}

func WithTurnRecorder(r TurnRecorder) Option {
	return func(s *RouteService) { s.turns = r }
}

func WithObserver(o Observer) Option {
	return func(s *RouteService) { s.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *RouteService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRouteService wires the selector and one handler leaf per capability into
// a workflow graph and checks that every capability is routable.
func NewRouteService(catalog Catalog, selector SelectorNode, llm LLMClient, mem Memory, handlerModel string, opts ...Option) (*RouteService, error) {
	if catalog == nil || len(catalog.Names()) == 0 {
		return nil, errors.New("usecase: catalog must contain at least one capability")
	}
	if selector == nil {
		return nil, errors.New("usecase: selector must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if mem == nil {
		return nil, errors.New("usecase: memory must not be nil")
	}
	handlerModel = strings.TrimSpace(handlerModel)
	if handlerModel == "" {
		return nil, errors.New("usecase: handler model must not be empty")
	}

	s := &RouteService{
		llm:          llm,
		memory:       mem,
		handlerModel: handlerModel,
		temperature:  0.7,
		maxInputLen:  defaultMaxInput,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	g := workflow.NewGraph().SetEntry(selectorNode, selector.Node)
	table := make(map[string]string)
	for _, c := range catalog.List() {
		g.AddLeaf(c.Name, s.handlerNode(c))
		table[c.Name] = c.Name
	}
	g.AddConditionalEdges(selectorNode, workflow.BySelectedCapability, table)

	engine, err := g.Compile(workflow.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("usecase: build workflow: %w", err)
	}
	if err := engine.CheckRoutes(catalog.Names()); err != nil {
		return nil, fmt.Errorf("usecase: %w", err)
	}
	s.engine = engine
	return s, nil
}

// Process routes one request, runs the chosen handler and records the turn
// in the thread's memory window.
func (s *RouteService) Process(ctx context.Context, in RouteInput) (out RouteOutput, err error) {
	defer func() { s.observeRequest(err) }()

	input := strings.TrimSpace(in.Input)
	if input == "" {
		return RouteOutput{}, newError(ErrorInvalidInput, "empty_input", domain.ErrEmptyInput)
	}
	if utf8.RuneCountInString(input) > s.maxInputLen {
		return RouteOutput{}, newError(ErrorInvalidInput, "input_too_long", nil)
	}
	threadID := in.ThreadID
	if threadID == 0 {
		threadID = defaultThreadID
	}
	if threadID < 0 {
		return RouteOutput{}, newError(ErrorInvalidInput, "invalid_thread", nil)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	initial := domain.NewConversationState(input, threadID, s.memory.Window(threadID))
	res, runErr := s.engine.Run(ctx, initial)
	if runErr != nil {
		return RouteOutput{}, classifyRunError(res, runErr)
	}
	final := res.State
	if s.observer != nil && final.SelectedCapability != "" {
		s.observer.ObserveDecision(final.SelectedCapability, final.Source)
	}

	response, ok := final.LastResponse()
	if !ok {
		response = noResponseFallback
	}

	count := s.memory.Append(threadID, domain.MemoryEntry{
		Prompt:     input,
		Capability: final.SelectedCapability,
		Response:   response,
		Timestamp:  s.now(),
	})

	turnID := newUUID()
	s.recordTurn(ctx, domain.TurnRecord{
		TurnID:     turnID,
		ThreadID:   threadID,
		Prompt:     input,
		Capability: final.SelectedCapability,
		Source:     final.Source,
		Rationale:  final.Rationale,
		Response:   response,
	})

	s.logger.Info("request processed",
		zap.String("turn_id", turnID),
		zap.Int64("thread_id", threadID),
		zap.String("capability", final.SelectedCapability),
		zap.String("source", string(final.Source)),
		zap.Int("memory_count", count),
	)

	return RouteOutput{
		Response:           response,
		SelectedCapability: final.SelectedCapability,
		Rationale:          final.Rationale,
		Source:             final.Source,
		Transcript:         final.Messages,
		ThreadID:           threadID,
		MemoryCount:        count,
		TurnID:             turnID,
		Trace:              workflow.Statuses(res.Transitions),
	}, nil
}

func (s *RouteService) handlerNode(c domain.Capability) workflow.Node {
	return func(ctx context.Context, state domain.ConversationState) (domain.ConversationState, error) {
		text, err := s.llm.Chat(ctx, domain.ChatRequest{
			Model:       s.handlerModel,
			Messages:    buildHandlerMessages(c, state),
			Temperature: s.temperature,
		})
		if err != nil {
			return state, fmt.Errorf("usecase: %s: %w", c.Name, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			s.logger.Warn("handler returned no text", zap.String("capability", c.Name))
			return state, nil
		}
		return state.WithMessage(domain.ChatMessage{
			Role:    domain.RoleAssistant,
			Name:    c.Name,
			Content: text,
		}), nil
	}
}

func (s *RouteService) recordTurn(ctx context.Context, turn domain.TurnRecord) {
	if s.turns == nil {
		return
	}
	if err := s.turns.RecordTurn(ctx, turn); err != nil {
		s.logger.Warn("failed to record turn", zap.String("turn_id", turn.TurnID), zap.Error(err))
	}
}

func (s *RouteService) observeRequest(err error) {
	if s.observer == nil {
		return
	}
	if err == nil {
		s.observer.ObserveRequest(outcomeOK)
		return
	}
	s.observer.ObserveRequest(strings.ToLower(string(CodeOf(err))))
}

func classifyRunError(res workflow.Result, err error) error {
	switch {
	case errors.Is(err, domain.ErrOracleUnavailable):
		if isRateLimited(err) {
			return newError(ErrorRateLimited, "oracle_rate_limited", err)
		}
		return newError(ErrorOracleUnavailable, "oracle_unavailable", err)
	case errors.Is(err, domain.ErrUnroutableCapability):
		return newError(ErrorInternal, "unroutable_capability", err)
	case res.Leaf != "":
		if isRateLimited(err) {
			return newError(ErrorRateLimited, "handler_rate_limited", err)
		}
		return newError(ErrorUpstream, "handler_error", err)
	default:
		return newError(ErrorInternal, "workflow_error", err)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}

// Package workflow runs a single-pass routing graph: one entry node, a
// conditional edge table and leaf nodes that all end the run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"worldbuilder-agent/internal/domain"
)

// Status is the lifecycle position of a run.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSelecting  Status = "SELECTING"
	StatusDispatched Status = "DISPATCHED"
	StatusCompleted  Status = "COMPLETED"
)

// Node transforms a state into a new state.
type Node func(ctx context.Context, state domain.ConversationState) (domain.ConversationState, error)

// Router maps the post-entry state to an edge key.
type Router func(state domain.ConversationState) string

// BySelectedCapability routes on the capability chosen by the entry node.
func BySelectedCapability(state domain.ConversationState) string {
	return state.SelectedCapability
}

// Transition is one step of a run.
type Transition struct {
	From Status
	To   Status
	Node string
}

// Result is what remains of a run once it completes.
type Result struct {
	State       domain.ConversationState
	Transitions []Transition
	// Leaf is the dispatched node, empty when routing was skipped.
	Leaf string
}

// Graph collects nodes and edges before Compile.
type Graph struct {
	entryName string
	entry     Node
	leaves    map[string]Node
	leafOrder []string
	router    Router
	edges     map[string]string
	errs      []error
}

func NewGraph() *Graph {
	return &Graph{leaves: make(map[string]Node), edges: make(map[string]string)}
}

// SetEntry registers the node every run starts at.
func (g *Graph) SetEntry(name string, n Node) *Graph {
	if g.entry != nil {
		g.errs = append(g.errs, fmt.Errorf("entry already set to %q", g.entryName))
		return g
	}
	if n == nil || strings.TrimSpace(name) == "" {
		g.errs = append(g.errs, errors.New("entry node needs a name and a function"))
		return g
	}
	g.entryName, g.entry = name, n
	return g
}

// AddLeaf registers a terminal node. Every leaf transitions to COMPLETED.
func (g *Graph) AddLeaf(name string, n Node) *Graph {
	if n == nil || strings.TrimSpace(name) == "" {
		g.errs = append(g.errs, errors.New("leaf node needs a name and a function"))
		return g
	}
	if _, ok := g.leaves[name]; ok {
		g.errs = append(g.errs, fmt.Errorf("leaf %q already added", name))
		return g
	}
	g.leaves[name] = n
	g.leafOrder = append(g.leafOrder, name)
	return g
}

// AddConditionalEdges wires the entry node to leaves: router's result is
// looked up in table to find the leaf to dispatch.
func (g *Graph) AddConditionalEdges(from string, router Router, table map[string]string) *Graph {
	if from != g.entryName {
		g.errs = append(g.errs, fmt.Errorf("conditional edges must start at the entry node, got %q", from))
		return g
	}
	if router == nil {
		g.errs = append(g.errs, errors.New("router must not be nil"))
		return g
	}
	g.router = router
	for key, leaf := range table {
		g.edges[key] = leaf
	}
	return g
}

// Compile validates the graph and returns an immutable engine.
func (g *Graph) Compile(opts ...EngineOption) (*Engine, error) {
	errs := append([]error(nil), g.errs...)
	if g.entry == nil {
		errs = append(errs, errors.New("no entry node"))
	}
	if g.router == nil {
		errs = append(errs, errors.New("no conditional edges from the entry node"))
	}
	for key, leaf := range g.edges {
		if _, ok := g.leaves[leaf]; !ok {
			errs = append(errs, fmt.Errorf("edge %q targets unknown leaf %q", key, leaf))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("workflow: compile: %w", err)
	}

	e := &Engine{
		entryName: g.entryName,
		entry:     g.entry,
		router:    g.router,
		leaves:    make(map[string]Node, len(g.leaves)),
		edges:     make(map[string]string, len(g.edges)),
		logger:    zap.NewNop(),
	}
	for k, v := range g.leaves {
		e.leaves[k] = v
	}
	for k, v := range g.edges {
		e.edges[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Engine executes compiled graphs. It is safe for concurrent runs; each run
// owns its state.
type Engine struct {
	entryName string
	entry     Node
	router    Router
	leaves    map[string]Node
	edges     map[string]string
	logger    *zap.Logger
}

type EngineOption func(*Engine)

func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// CheckRoutes reports every name without a dispatch edge.
func (e *Engine) CheckRoutes(names []string) error {
	var errs []error
	for _, name := range names {
		if _, ok := e.edges[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %q", domain.ErrUnroutableCapability, name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return nil
}

// Run executes entry, then at most one leaf. A state the entry node leaves
// without a selection completes without dispatch.
func (e *Engine) Run(ctx context.Context, initial domain.ConversationState) (Result, error) {
	r := run{}
	r.step(StatusPending, StatusSelecting, e.entryName)

	state, err := e.entry(ctx, initial)
	if err != nil {
		return Result{State: initial, Transitions: r.trace}, fmt.Errorf("workflow: %s: %w", e.entryName, err)
	}

	key := e.router(state)
	if key == "" {
		e.logger.Warn("no capability selected, completing without dispatch", zap.Int64("thread_id", state.ThreadID))
		r.step(StatusSelecting, StatusCompleted, "")
		return Result{State: state, Transitions: r.trace}, nil
	}

	leafName, ok := e.edges[key]
	if !ok {
		return Result{State: state, Transitions: r.trace}, fmt.Errorf("workflow: %w: %q", domain.ErrUnroutableCapability, key)
	}
	r.step(StatusSelecting, StatusDispatched, leafName)
	e.logger.Debug("dispatching", zap.String("leaf", leafName), zap.Int64("thread_id", state.ThreadID))

	final, err := e.leaves[leafName](ctx, state)
	if err != nil {
		return Result{State: state, Transitions: r.trace, Leaf: leafName}, fmt.Errorf("workflow: %s: %w", leafName, err)
	}
	r.step(StatusDispatched, StatusCompleted, leafName)
	return Result{State: final, Transitions: r.trace, Leaf: leafName}, nil
}

type run struct {
	trace []Transition
}

func (r *run) step(from, to Status, node string) {
	r.trace = append(r.trace, Transition{From: from, To: to, Node: node})
}

// Statuses flattens a trace into the visited statuses.
func Statuses(trace []Transition) []Status {
	if len(trace) == 0 {
		return nil
	}
	out := []Status{trace[0].From}
	for _, t := range trace {
		out = append(out, t.To)
	}
	return out
}

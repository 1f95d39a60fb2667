package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/dialogtree/internal/logging"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/graph"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports"
)

// DefaultTopK is the number of knowledge snippets composed into each prompt.
const DefaultTopK = 1

// Engine drives one dialog session over a shared graph.
// It owns the session's context and history tree and is not safe for
// concurrent turns: callers serialize them (see pkg/session).
type Engine struct {
	graph     *graph.Graph
	retriever ports.Retriever
	generator ports.Generator

	sessionID     string
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	topK          int
	chatKnowledge bool

	status  domain.Status
	current string
	vars    *domain.Context
	tree    *history.Tree
	options []RenderedOption // rendered options of the current node
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
// Calling it more than once merges the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithSessionID tags events and log records with the session id.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithTopK sets how many snippets are requested from the retriever.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithChatKnowledge toggles the knowledge preamble for free chat turns.
func WithChatKnowledge(enabled bool) Option {
	return func(e *Engine) {
		e.chatKnowledge = enabled
	}
}

// WithHistory seeds the engine with a previously loaded history tree.
func WithHistory(tree *history.Tree) Option {
	return func(e *Engine) {
		if tree != nil {
			e.tree = tree
		}
	}
}

// NewEngine creates an engine for g. The retriever may be nil, in which case
// prompts carry no knowledge preamble.
func NewEngine(g *graph.Graph, retriever ports.Retriever, generator ports.Generator, opts ...Option) *Engine {
	e := &Engine{
		graph:         g,
		retriever:     retriever,
		generator:     generator,
		logger:        logging.NewNop(),
		topK:          DefaultTopK,
		chatKnowledge: true,
		status:        domain.StatusNotStarted,
		vars:          domain.NewContext(),
		tree:          history.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start resets the context, enters the initial node and records its utterance
// on a new history branch. Previously loaded history is kept.
func (e *Engine) Start(ctx context.Context) (*Turn, error) {
	vars := domain.NewContext()

	target, path, err := e.resolve(e.graph.Entry(), vars)
	if err != nil {
		return nil, err
	}
	utterance, options, err := e.render(ctx, target, vars)
	if err != nil {
		return nil, err
	}

	if e.status != domain.StatusNotStarted && e.current != "" {
		e.leave(ctx, e.current)
	}
	e.vars = vars
	e.tree.Append(history.RoleSystem, utterance, true)
	e.enter(ctx, target, path, options)

	e.log().DebugContext(ctx, "session started", "node_id", target.NodeID())
	return e.turn(utterance, path), nil
}

// Respond processes one user turn.
//
// Before Start it fails with domain.ErrNotStarted. Once the session is
// finished every turn is routed to free chat. An answer matching no option
// key yields a Turn with InvalidChoice set and leaves the session unchanged
// apart from the recorded user message. Collaborator failures are returned as
// *domain.ServiceError with the same guarantee.
func (e *Engine) Respond(ctx context.Context, text string) (*Turn, error) {
	switch e.status {
	case domain.StatusNotStarted:
		return nil, domain.ErrNotStarted
	case domain.StatusFinished:
		return e.chat(ctx, text)
	}

	node, err := e.graph.Lookup(e.current)
	if err != nil {
		return nil, err
	}

	e.tree.Append(history.RoleUser, text, false)

	vars := domain.ContextFrom(e.vars.Snapshot())
	next, ok := e.dispatch(ctx, node, text, vars)
	if !ok {
		return &Turn{
			NodeID:        e.current,
			Options:       e.currentOptions(),
			InvalidChoice: true,
			Status:        e.status,
		}, nil
	}
	if next == "" {
		e.leave(ctx, e.current)
		e.status = domain.StatusFinished
		return e.turn("", nil), nil
	}

	target, path, err := e.resolve(next, vars)
	if err != nil {
		return nil, err
	}
	utterance, options, err := e.render(ctx, target, vars)
	if err != nil {
		e.log().WarnContext(ctx, "turn aborted", "node_id", target.NodeID(), "err", err)
		return nil, err
	}

	e.leave(ctx, e.current)
	e.vars = vars
	e.tree.Append(history.RoleSystem, utterance, false)
	e.enter(ctx, target, path, options)
	return e.turn(utterance, path), nil
}

// dispatch applies the user's answer to node. It reports false when the
// answer is not an accepted option. An empty next id means the node has no
// successor.
func (e *Engine) dispatch(ctx context.Context, node domain.Node, text string, vars *domain.Context) (string, bool) {
	switch n := node.(type) {
	case *domain.CaptureNode:
		vars.Set(n.Variable, text)
		return n.Next, true
	case *domain.OptionNode:
		opt, ok := n.Match(text)
		if !ok {
			e.log().DebugContext(ctx, "invalid choice", "node_id", n.ID, "input", text, "accepted", n.Keys())
			if e.hooks.OnInvalidChoice != nil {
				e.hooks.OnInvalidChoice(ctx, &domain.ChoiceEvent{
					EventBase: e.event(domain.EventInvalidChoice),
					NodeID:    n.ID,
					Input:     text,
				})
			}
			return "", false
		}
		return opt.Next, true
	case *domain.BranchNode:
		return n.Route(vars.GetOr(n.Variable, "")), true
	default:
		return "", true
	}
}

func (e *Engine) turn(utterance string, path []string) *Turn {
	return &Turn{
		NodeID:    e.current,
		Utterance: utterance,
		Options:   e.currentOptions(),
		Status:    e.status,
		Path:      path,
	}
}

func (e *Engine) currentOptions() []RenderedOption {
	if len(e.options) > 0 {
		out := make([]RenderedOption, len(e.options))
		copy(out, e.options)
		return out
	}
	n, ok := e.Current().(*domain.OptionNode)
	if !ok || e.status != domain.StatusAwaitingInput {
		return nil
	}
	out := make([]RenderedOption, 0, len(n.Options))
	for _, o := range n.Options {
		out = append(out, RenderedOption{Key: o.Key, Prompt: o.Prompt})
	}
	return out
}

func (e *Engine) log() *slog.Logger {
	return e.logger.With("session_id", e.sessionID)
}

// Status reports the lifecycle phase of the session.
func (e *Engine) Status() domain.Status { return e.status }

// Current returns the node the session waits on, or nil before Start.
func (e *Engine) Current() domain.Node {
	if e.current == "" {
		return nil
	}
	n, err := e.graph.Lookup(e.current)
	if err != nil {
		return nil
	}
	return n
}

// Context returns a copy of the captured variables.
func (e *Engine) Context() map[string]string { return e.vars.Snapshot() }

// History returns the session's history tree. The tree is owned by the
// engine and must not be appended to by callers.
func (e *Engine) History() *history.Tree { return e.tree }

// LoadHistory replaces the history tree. The graph walk is not affected.
func (e *Engine) LoadHistory(tree *history.Tree) {
	if tree == nil {
		tree = history.New()
	}
	e.tree = tree
}

// Snapshot captures the persistable state of the session.
func (e *Engine) Snapshot() *domain.State {
	return &domain.State{
		SessionID:     e.sessionID,
		CurrentNodeID: e.current,
		Status:        e.status,
		Context:       e.vars.Snapshot(),
		Branch:        e.tree.BranchPath(),
	}
}

// Restore resumes a session from a snapshot. Rendered options are not part
// of the snapshot, so invalid-choice turns after a restore list option keys only.
func (e *Engine) Restore(state *domain.State) error {
	if state == nil {
		return fmt.Errorf("restore: nil state")
	}
	switch state.Status {
	case domain.StatusNotStarted, domain.StatusAwaitingInput, domain.StatusFinished:
	default:
		return fmt.Errorf("restore: unknown status %q", state.Status)
	}
	if state.Status == domain.StatusAwaitingInput {
		n, err := e.graph.Lookup(state.CurrentNodeID)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if n.Kind() == domain.KindBranch || n.Kind() == domain.KindTerminal {
			return fmt.Errorf("restore: node %q cannot await input", n.NodeID())
		}
	}

	e.status = state.Status
	e.current = state.CurrentNodeID
	e.vars = domain.ContextFrom(state.Context)
	e.options = nil
	if state.SessionID != "" {
		e.sessionID = state.SessionID
	}
	if len(state.Branch) > 0 {
		if err := e.tree.Resume(state.Branch); err != nil {
			// History and state were saved apart; the next message opens a new branch.
			e.log().Warn("history branch not resumed", "err", err)
		}
	}
	return nil
}

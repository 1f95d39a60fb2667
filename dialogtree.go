package dialogtree

import (
	"context"
	"log/slog"

	"github.com/aretw0/dialogtree/internal/logging"
	"github.com/aretw0/dialogtree/internal/runtime"
	"github.com/aretw0/dialogtree/pkg/adapters/file"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/flows"
	"github.com/aretw0/dialogtree/pkg/graph"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports"
	"github.com/aretw0/dialogtree/pkg/session"
)

// Turn is the observable outcome of Start or Respond.
type Turn = runtime.Turn

// RenderedOption is an option of the current node prepared for display.
type RenderedOption = runtime.RenderedOption

// Engine is the high-level entry point of the library.
// It wraps the internal runtime for one session and builds session managers
// sharing the same graph and collaborators.
type Engine struct {
	runtime *runtime.Engine

	graph         *graph.Graph
	retriever     ports.Retriever
	generator     ports.Generator
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	topK          int
	chatKnowledge bool
	sessionID     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithGraph replaces the built-in thermostat graph.
func WithGraph(g *graph.Graph) Option {
	return func(e *Engine) {
		e.graph = g
	}
}

// WithRetriever enables the knowledge preamble of every prompt.
func WithRetriever(r ports.Retriever) Option {
	return func(e *Engine) {
		e.retriever = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTopK sets how many knowledge snippets are composed into each prompt.
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// WithChatKnowledge toggles retrieval for free chat turns (default on).
func WithChatKnowledge(enabled bool) Option {
	return func(e *Engine) {
		e.chatKnowledge = enabled
	}
}

// WithSessionID tags log records and events of the standalone engine.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// New creates an engine generating utterances with generator.
// Without WithGraph the built-in thermostat flow is used.
func New(generator ports.Generator, opts ...Option) *Engine {
	e := &Engine{
		generator:     generator,
		logger:        logging.NewNop(),
		topK:          runtime.DefaultTopK,
		chatKnowledge: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.graph == nil {
		e.graph = flows.Thermostat()
	}
	e.runtime = e.newRuntime(runtime.WithSessionID(e.sessionID))
	return e
}

func (e *Engine) newRuntime(extra ...runtime.Option) *runtime.Engine {
	opts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithTopK(e.topK),
		runtime.WithChatKnowledge(e.chatKnowledge),
	}
	return runtime.NewEngine(e.graph, e.retriever, e.generator, append(opts, extra...)...)
}

// Start enters the initial node and returns its utterance and options.
func (e *Engine) Start(ctx context.Context) (*Turn, error) {
	return e.runtime.Start(ctx)
}

// Respond submits one user reply. After the guided flow finished, replies
// are answered in free chat.
func (e *Engine) Respond(ctx context.Context, text string) (*Turn, error) {
	return e.runtime.Respond(ctx, text)
}

// Status reports the lifecycle phase of the session.
func (e *Engine) Status() domain.Status { return e.runtime.Status() }

// Current returns the node awaiting input, or nil.
func (e *Engine) Current() domain.Node { return e.runtime.Current() }

// Context returns a copy of the captured variables.
func (e *Engine) Context() map[string]string { return e.runtime.Context() }

// Graph returns the dialog definition.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// History returns the live history tree.
func (e *Engine) History() *history.Tree { return e.runtime.History() }

// LoadHistory replaces the history tree.
func (e *Engine) LoadHistory(tree *history.Tree) { e.runtime.LoadHistory(tree) }

// Snapshot captures the persistable state.
func (e *Engine) Snapshot() *domain.State { return e.runtime.Snapshot() }

// Restore resumes a session from a snapshot.
func (e *Engine) Restore(state *domain.State) error { return e.runtime.Restore(state) }

// SaveHistory writes the history tree to path.
func (e *Engine) SaveHistory(path string) error {
	return file.WriteHistoryFile(path, e.runtime.History())
}

// LoadHistoryFile replaces the history tree with the document at path.
func (e *Engine) LoadHistoryFile(path string) error {
	tree, err := file.ReadHistoryFile(path)
	if err != nil {
		return err
	}
	e.runtime.LoadHistory(tree)
	return nil
}

// NewSessionManager builds a manager whose sessions share the engine's
// graph, collaborators and hooks.
func (e *Engine) NewSessionManager(store ports.SessionStore, opts ...session.Option) *session.Manager {
	factory := func(extra ...runtime.Option) *runtime.Engine {
		return e.newRuntime(extra...)
	}
	opts = append([]session.Option{session.WithLogger(e.logger)}, opts...)
	return session.NewManager(store, factory, opts...)
}

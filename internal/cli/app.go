package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/dialogtree"
	"github.com/aretw0/dialogtree/internal/config"
	"github.com/aretw0/dialogtree/internal/logging"
	"github.com/aretw0/dialogtree/pkg/adapters/file"
	"github.com/aretw0/dialogtree/pkg/adapters/memory"
	"github.com/aretw0/dialogtree/pkg/adapters/openai"
	"github.com/aretw0/dialogtree/pkg/adapters/redis"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/flows"
	"github.com/aretw0/dialogtree/pkg/graph"
	"github.com/aretw0/dialogtree/pkg/observability"
	"github.com/aretw0/dialogtree/pkg/persistence/middleware"
	"github.com/aretw0/dialogtree/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the components built from a configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Graph    *graph.Graph
	Engine   *dialogtree.Engine
	Registry *prometheus.Registry
}

// Build wires the generator, retriever, graph and metrics described by cfg.
// The generator must be provided when cfg carries no API key (tests, offline runs).
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, debug bool, gen ports.Generator) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	g, docs, err := LoadGraph(cfg)
	if err != nil {
		return nil, err
	}

	if gen == nil {
		gen, err = openai.NewGenerator(cfg.OpenAI())
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
	}

	retriever, err := buildRetriever(ctx, cfg, docs)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks := observability.NewMetrics(reg).Hooks()
	if debug {
		hooks = hooks.Merge(debugHooks(logger))
	}

	opts := []dialogtree.Option{
		dialogtree.WithGraph(g),
		dialogtree.WithLogger(logger),
		dialogtree.WithLifecycleHooks(hooks),
		dialogtree.WithTopK(cfg.Retrieval.TopK),
		dialogtree.WithChatKnowledge(cfg.ChatKnowledge()),
	}
	if retriever != nil {
		opts = append(opts, dialogtree.WithRetriever(retriever))
	}

	logger.Debug("application assembled",
		"nodes", len(g.Nodes()),
		"documents", len(docs),
		"retrieval", cfg.Retrieval.Kind,
		"store", cfg.Store.Kind,
	)
	return &App{
		Config:   cfg,
		Logger:   logger,
		Graph:    g,
		Engine:   dialogtree.New(gen, opts...),
		Registry: reg,
	}, nil
}

// LoadGraph returns the configured graph and its knowledge documents.
// A knowledge file overrides the documents embedded in the graph file.
func LoadGraph(cfg *config.Config) (*graph.Graph, []domain.Document, error) {
	g := flows.Thermostat()
	docs := flows.ThermostatKnowledge()

	if cfg.Graph != "" {
		def, err := graph.LoadFile(cfg.Graph)
		if err != nil {
			return nil, nil, err
		}
		g, docs = def.Graph, def.Knowledge
	}
	if cfg.Retrieval.Knowledge != "" {
		loaded, err := config.LoadKnowledge(cfg.Retrieval.Knowledge)
		if err != nil {
			return nil, nil, err
		}
		docs = loaded
	}
	return g, docs, nil
}

func buildRetriever(ctx context.Context, cfg *config.Config, docs []domain.Document) (ports.Retriever, error) {
	var kb ports.KnowledgeBase
	switch cfg.Retrieval.Kind {
	case config.RetrievalNone:
		return nil, nil
	case config.RetrievalEmbedding:
		ekb, err := openai.NewKnowledgeBase(cfg.OpenAI())
		if err != nil {
			return nil, fmt.Errorf("failed to create knowledge base: %w", err)
		}
		kb = ekb
	default:
		kb = memory.NewKnowledgeBase()
	}
	if err := kb.Init(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to index knowledge: %w", err)
	}
	return kb, nil
}

// OpenStore returns the configured session store, an optional distributed
// locker and a func releasing the store's resources. The store is wrapped
// with encryption when store.encryption.key is set.
func OpenStore(cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	store, locker, closer, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Store.Encryption.Key == "" {
		return store, locker, closer, nil
	}

	keys, err := cfg.Encryption()
	if err != nil {
		_ = closer()
		return nil, nil, nil, err
	}
	mw, err := middleware.NewEncryptionMiddleware(keys)
	if err != nil {
		_ = closer()
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mw), locker, closer, nil
}

func openStore(cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Kind {
	case config.StoreFile:
		path := cfg.Store.Path
		if path == "" {
			path = file.DefaultPath
		}
		return file.New(path), nil, noop, nil
	case config.StoreRedis:
		rc := cfg.Store.Redis
		store := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		locker := redis.NewLocker(store.Client(), rc.Prefix)
		return store, locker, store.Client().Close, nil
	case config.StoreMemory:
		return memory.NewStore(), nil, noop, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
}

// NewLogger configures the application logger in the given format ("text" or "json").
// Outside debug mode only warnings and errors are written.
func NewLogger(debug bool, format string) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return logging.New(logging.Options{Level: level, Format: logging.Format(format)})
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "enter node", "node_id", e.NodeID, "kind", e.NodeKind)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "leave node", "node_id", e.NodeID)
		},
		OnGenerate: func(ctx context.Context, e *domain.GenerateEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "generation failed", "purpose", e.Purpose, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "generated", "purpose", e.Purpose, "node_id", e.NodeID, "duration", e.Duration)
		},
		OnInvalidChoice: func(ctx context.Context, e *domain.ChoiceEvent) {
			logger.DebugContext(ctx, "invalid choice", "node_id", e.NodeID, "input", e.Input)
		},
	}
}

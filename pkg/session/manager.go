package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/dialogtree/internal/logging"
	"github.com/aretw0/dialogtree/internal/runtime"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// EngineFactory builds a fresh engine for one session.
// The manager appends runtime.WithSessionID and runtime.WithHistory to opts.
type EngineFactory func(opts ...runtime.Option) *runtime.Engine

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager runs turns of many sessions over one SessionStore.
// Turns of the same session are serialized; turns of different sessions run
// concurrently. Reference counting garbage collects unused locks.
type Manager struct {
	store   ports.SessionStore
	factory EngineFactory

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	newID   func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithIDGenerator replaces the random session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a session manager persisting to store.
func NewManager(store ports.SessionStore, factory EngineFactory, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		factory: factory,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Step is the outcome of one turn. Before and After are the session states
// around the turn, both read under the session lock; Before is nil for a new
// session.
type Step struct {
	SessionID string
	Turn      *runtime.Turn
	Before    *domain.State
	After     *domain.State
}

// Create starts a new session and returns its id with the opening turn.
func (m *Manager) Create(ctx context.Context) (string, *runtime.Turn, error) {
	step, err := m.CreateStep(ctx)
	if err != nil {
		return "", nil, err
	}
	return step.SessionID, step.Turn, nil
}

// CreateStep is Create reporting the stored state of the new session.
func (m *Manager) CreateStep(ctx context.Context) (*Step, error) {
	step := &Step{SessionID: m.newID()}
	err := m.WithLock(ctx, step.SessionID, func(ctx context.Context) error {
		engine := m.factory(runtime.WithSessionID(step.SessionID))

		var err error
		step.Turn, err = engine.Start(ctx)
		if err != nil {
			return err
		}
		if err := m.persist(ctx, step.SessionID, engine, nil); err != nil {
			return err
		}
		step.After = engine.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "session created", "session_id", step.SessionID)
	return step, nil
}

// Respond runs one user turn against a stored session.
//
// The history is persisted even when the turn fails with a
// *domain.ServiceError, so the recorded user message survives.
func (m *Manager) Respond(ctx context.Context, sessionID, text string) (*runtime.Turn, error) {
	step, err := m.RespondStep(ctx, sessionID, text)
	if step == nil {
		return nil, err
	}
	return step.Turn, err
}

// RespondStep is Respond reporting the states around the turn.
// On a *domain.ServiceError the persisted step is returned with the error.
func (m *Manager) RespondStep(ctx context.Context, sessionID, text string) (*Step, error) {
	var step *Step
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		engine, prior, err := m.restore(ctx, sessionID)
		if err != nil {
			return err
		}

		turn, turnErr := engine.Respond(ctx, text)
		if turnErr != nil && !errors.Is(turnErr, domain.ErrService) {
			return turnErr
		}
		if err := m.persist(ctx, sessionID, engine, prior.tree); err != nil {
			return err
		}
		step = &Step{SessionID: sessionID, Turn: turn, Before: prior.state, After: engine.Snapshot()}
		return turnErr
	})
	return step, err
}

// Restart begins a new walk of the graph in an existing session.
// The stored history is kept and the opening utterance starts a new branch.
func (m *Manager) Restart(ctx context.Context, sessionID string) (*runtime.Turn, error) {
	step, err := m.RestartStep(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return step.Turn, nil
}

// RestartStep is Restart reporting the states around the restart.
func (m *Manager) RestartStep(ctx context.Context, sessionID string) (*Step, error) {
	var step *Step
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		engine, prior, err := m.restore(ctx, sessionID)
		if err != nil {
			return err
		}
		turn, err := engine.Start(ctx)
		if err != nil {
			return err
		}
		if err := m.persist(ctx, sessionID, engine, prior.tree); err != nil {
			return err
		}
		step = &Step{SessionID: sessionID, Turn: turn, Before: prior.state, After: engine.Snapshot()}
		return nil
	})
	return step, err
}

// stored is a session as it was read before a turn.
type stored struct {
	state *domain.State
	tree  *history.Tree
}

func (m *Manager) restore(ctx context.Context, sessionID string) (*runtime.Engine, *stored, error) {
	state, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	tree, err := m.store.LoadHistory(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		tree = history.New()
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}
	prior := &stored{state: state.Snapshot(), tree: tree.Clone()}

	engine := m.factory(runtime.WithSessionID(sessionID), runtime.WithHistory(tree))
	if err := engine.Restore(state); err != nil {
		return nil, nil, err
	}
	return engine, prior, nil
}

// persist writes the history, then the state. The history only grows within a
// turn, so a stored state always resolves its branch in the stored history.
// When the state cannot be written the history is put back to prior, or the
// session is removed when prior is nil.
func (m *Manager) persist(ctx context.Context, sessionID string, engine *runtime.Engine, prior *history.Tree) error {
	if err := m.store.SaveHistory(ctx, sessionID, engine.History()); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	if err := m.store.Save(ctx, sessionID, engine.Snapshot()); err != nil {
		var rollbackErr error
		if prior == nil {
			rollbackErr = m.store.Delete(ctx, sessionID)
		} else {
			rollbackErr = m.store.SaveHistory(ctx, sessionID, prior)
		}
		if rollbackErr != nil {
			m.logger.ErrorContext(ctx, "history rollback failed", "session_id", sessionID, "err", rollbackErr)
		}
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load retrieves the state of a session.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// History retrieves the history tree of a session.
func (m *Manager) History(ctx context.Context, sessionID string) (*history.Tree, error) {
	var tree *history.Tree
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, sessionID); err != nil {
			return err
		}
		var err error
		tree, err = m.store.LoadHistory(ctx, sessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			tree, err = history.New(), nil
		}
		return err
	})
	return tree, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

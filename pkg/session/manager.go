package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It implements ports.DialogueService.
type Manager struct {
	store  ports.StateStore
	loader ports.GraphLoader

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active per-session locks

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger

	interpreterOpts []runtime.Option
	onChange        []ChangeListener
	onStart         []StartListener
	newID           func() string
	now             func() time.Time
}

var _ ports.DialogueService = (*Manager)(nil)

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
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInterpreterOptions are applied to every interpreter the manager builds
// (hooks, step limit, custom evaluator...).
func WithInterpreterOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.interpreterOpts = append(m.interpreterOpts, opts...)
	}
}

// ChangeListener observes every persisted change of a session.
// It runs after the save, still under the session lock, so it must not block.
type ChangeListener func(ctx context.Context, sessionID string, diff *domain.StateDiff)

// WithChangeListener registers a listener for state diffs (e.g. to push updates to clients).
func WithChangeListener(fn ChangeListener) Option {
	return func(m *Manager) {
		if fn != nil {
			m.onChange = append(m.onChange, fn)
		}
	}
}

// StartListener observes every session created by Start, after it was saved.
type StartListener func(ctx context.Context, sess *domain.Session)

// WithStartListener registers a listener for new sessions (e.g. to count them).
func WithStartListener(fn StartListener) Option {
	return func(m *Manager) {
		if fn != nil {
			m.onStart = append(m.onStart, fn)
		}
	}
}

// WithIDGenerator replaces the UUIDv4 session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// NewManager creates a Session Manager over a session store and a graph source.
func NewManager(store ports.StateStore, loader ports.GraphLoader, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		loader:  loader,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// Loader returns the graph source.
func (m *Manager) Loader() ports.GraphLoader {
	return m.loader
}

// Start creates a session for graphName, advances it to the first suspension point
// and persists it.
func (m *Manager) Start(ctx context.Context, graphName string, vars domain.Variables) (*domain.Session, domain.StepResult, error) {
	seed, err := vars.Normalize()
	if err != nil {
		return nil, domain.StepResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidVariables, err)
	}
	graph, err := m.loader.Load(ctx, graphName)
	if err != nil {
		return nil, domain.StepResult{}, err
	}

	id := m.newID()
	var (
		session *domain.Session
		step    domain.StepResult
	)
	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		it, err := runtime.New(graph, seed, m.interpreterOptions(id)...)
		if err != nil {
			return err
		}
		step = it.Advance(ctx, nil)

		now := m.now().UTC()
		session = &domain.Session{
			ID:        id,
			Graph:     graphName,
			Seed:      seed,
			State:     it.State(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.Save(ctx, session); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		m.notify(ctx, id, domain.Diff(nil, session.State))
		return nil
	})
	if err != nil {
		return nil, domain.StepResult{}, err
	}

	m.logger.InfoContext(ctx, "session started", "session_id", id, "graph", graphName, "step", step.Kind)
	for _, fn := range m.onStart {
		fn(ctx, session)
	}
	return session, step, nil
}

// Advance resumes the session with the player's input.
func (m *Manager) Advance(ctx context.Context, sessionID string, input any) (*domain.Session, domain.StepResult, error) {
	return m.mutate(ctx, sessionID, func(ctx context.Context, session *domain.Session, graph *domain.Graph) (*runtime.Interpreter, error) {
		it, err := runtime.Restore(graph, session.State, session.Seed, m.interpreterOptions(sessionID)...)
		if err != nil {
			return nil, err
		}
		it.Advance(ctx, input)
		return it, nil
	})
}

// Reset restarts the session from its seed variables and advances to the first suspension point.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*domain.Session, domain.StepResult, error) {
	return m.mutate(ctx, sessionID, func(ctx context.Context, session *domain.Session, graph *domain.Graph) (*runtime.Interpreter, error) {
		it, err := runtime.New(graph, session.Seed, m.interpreterOptions(sessionID)...)
		if err != nil {
			return nil, err
		}
		it.Advance(ctx, nil)
		return it, nil
	})
}

// Get returns the session and the step it is parked at.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, domain.StepResult, error) {
	var (
		session *domain.Session
		step    domain.StepResult
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var (
			graph *domain.Graph
			err   error
		)
		session, graph, err = m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		it, err := runtime.Restore(graph, session.State, session.Seed)
		if err != nil {
			return err
		}
		step, _ = it.Peek()
		return nil
	})
	if err != nil {
		return nil, domain.StepResult{}, err
	}
	return session, step, nil
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, sessionID); err != nil {
			return err
		}
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

type mutation func(ctx context.Context, session *domain.Session, graph *domain.Graph) (*runtime.Interpreter, error)

// mutate runs a load-change-save cycle under the session lock and reports the resulting step.
func (m *Manager) mutate(ctx context.Context, sessionID string, fn mutation) (*domain.Session, domain.StepResult, error) {
	var (
		session *domain.Session
		step    domain.StepResult
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var (
			graph *domain.Graph
			err   error
		)
		session, graph, err = m.load(ctx, sessionID)
		if err != nil {
			return err
		}

		before := session.State
		it, err := fn(ctx, session, graph)
		if err != nil {
			return err
		}
		step, _ = it.Peek()
		session.State = it.State()
		session.UpdatedAt = m.now().UTC()

		diff := domain.Diff(before, session.State)
		if diff != nil {
			m.logger.DebugContext(ctx, "session state changed",
				"session_id", sessionID,
				"appended", diff.Appended,
				"variables", len(diff.Variables))
		}

		if err := m.store.Save(ctx, session); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		m.notify(ctx, sessionID, diff)
		return nil
	})
	if err != nil {
		return nil, domain.StepResult{}, err
	}
	return session, step, nil
}

func (m *Manager) notify(ctx context.Context, sessionID string, diff *domain.StateDiff) {
	if diff == nil {
		return
	}
	for _, fn := range m.onChange {
		fn(ctx, sessionID, diff)
	}
}

func (m *Manager) load(ctx context.Context, sessionID string) (*domain.Session, *domain.Graph, error) {
	session, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.State == nil {
		return nil, nil, fmt.Errorf("session %s has no state", sessionID)
	}
	graph, err := m.loader.Load(ctx, session.Graph)
	if err != nil {
		if errors.Is(err, domain.ErrGraphNotFound) {
			m.logger.WarnContext(ctx, "session refers to a missing graph", "session_id", sessionID, "graph", session.Graph)
		}
		return nil, nil, err
	}
	return session, graph, nil
}

func (m *Manager) interpreterOptions(sessionID string) []runtime.Option {
	opts := []runtime.Option{runtime.WithLogger(m.logger.With("session_id", sessionID))}
	return append(opts, m.interpreterOpts...)
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

// WithLock executes fn while holding the lock for the session.
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
			// Released with a fresh context so a canceled request still frees the key.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

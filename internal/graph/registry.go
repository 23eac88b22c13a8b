package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultIdleTTL         = 30 * time.Minute
	defaultJanitorInterval = 5 * time.Minute
)

// Loader builds and hydrates the engine for a project.
type Loader func(ctx context.Context, projectID uuid.UUID) (*Engine, error)

// StoreLoader returns a Loader that hydrates each engine from stores and
// attaches listeners to it. Hydrated facts are replayed to the listeners.
func StoreLoader(stores Stores, logger *zap.Logger, listeners ...FactListener) Loader {
	return func(ctx context.Context, projectID uuid.UUID) (*Engine, error) {
		e := NewEngine(projectID, stores, logger)
		for _, l := range listeners {
			e.AddListener(l)
		}
		if stores.Entities != nil && stores.Facts != nil {
			if _, err := e.Hydrate(ctx); err != nil {
				return nil, err
			}
			e.Replay(ctx)
		}
		return e, nil
	}
}

// session owns one project's engine. Holding the token in lock is owning the engine.
type session struct {
	lock     chan struct{}
	engine   *Engine
	refs     int
	lastUsed time.Time
}

// Registry keeps one engine per project and runs at most one caller per project
// at a time. Callers for different projects never wait on each other.
type Registry struct {
	load   Loader
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	idleTTL  time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRegistry(load Loader, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		load:     load,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
		idleTTL:  defaultIdleTTL,
		interval: defaultJanitorInterval,
		stopCh:   make(chan struct{}),
	}
}

func (r *Registry) SetIdleTTL(d time.Duration) {
	if d > 0 {
		r.idleTTL = d
	}
}

func (r *Registry) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// WithProject runs fn with exclusive use of the project's engine, loading it on
// first use. It gives up with ctx.Err() if ctx ends while waiting for the lock.
// A failed load is not cached; the next call retries it.
func (r *Registry) WithProject(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, e *Engine) error) error {
	s := r.acquire(projectID)
	defer r.release(s)

	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lock }()

	if s.engine == nil {
		e, err := r.load(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load project graph: %w", err)
		}
		s.engine = e
	}

	return fn(ctx, s.engine)
}

func (r *Registry) acquire(projectID uuid.UUID) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[projectID]
	if !ok {
		s = &session{lock: make(chan struct{}, 1)}
		r.sessions[projectID] = s
	}
	s.refs++
	return s
}

func (r *Registry) release(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	s.lastUsed = r.now()
}

// Evict drops sessions nobody holds or waits on that have been idle longer than
// idle. The next WithProject call for an evicted project hydrates afresh.
func (r *Registry) Evict(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	evicted := 0
	for id, s := range r.sessions {
		if s.refs > 0 || s.lastUsed.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// Invalidate drops a project's session once it is idle, forcing a reload.
func (r *Registry) Invalidate(projectID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[projectID]
	if !ok || s.refs > 0 {
		return false
	}
	delete(r.sessions, projectID)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Start runs idle eviction on a periodic schedule in a background goroutine.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("graph session janitor started",
			zap.Duration("interval", r.interval),
			zap.Duration("idle_ttl", r.idleTTL),
		)

		for {
			select {
			case <-ticker.C:
				if n := r.Evict(r.idleTTL); n > 0 {
					r.logger.Info("evicted idle graph sessions", zap.Int("count", n))
				}
			case <-r.stopCh:
				r.logger.Info("graph session janitor stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the janitor.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

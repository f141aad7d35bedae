package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"multirag/internal/domain"
)

// ErrUnknownSession is returned by Acquire for a session with no store.
var ErrUnknownSession = errors.New("unknown session")

type slot struct {
	store domain.VectorStore
	refs  int
	// retired slots are dropped once refs reaches zero.
	retired bool
}

// Arena keeps one vector store per session. Swap installs a new store
// atomically; a replaced store is dropped once no lease holds it.
type Arena struct {
	mu       sync.Mutex
	sessions map[string]*slot
	log      *zap.Logger
}

func NewArena(log *zap.Logger) *Arena {
	if log == nil {
		log = zap.NewNop()
	}
	return &Arena{sessions: make(map[string]*slot), log: log}
}

// Lease pins a store for the duration of a query.
type Lease struct {
	arena *Arena
	slot  *slot
	once  sync.Once
}

// Store returns the leased store.
func (l *Lease) Store() domain.VectorStore { return l.slot.store }

// Release unpins the store, dropping it if it was retired meanwhile.
// Calling Release more than once is a no-op.
func (l *Lease) Release(ctx context.Context) {
	l.once.Do(func() { l.arena.release(ctx, l.slot) })
}

// Swap installs store for session and retires the previous one.
func (a *Arena) Swap(ctx context.Context, session string, store domain.VectorStore) {
	a.mu.Lock()
	old := a.sessions[session]
	a.sessions[session] = &slot{store: store}
	a.mu.Unlock()
	if old != nil {
		a.retire(ctx, session, old)
	}
}

// Acquire leases the current store of session.
func (a *Arena) Acquire(session string) (*Lease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[session]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}
	s.refs++
	return &Lease{arena: a, slot: s}, nil
}

// Close removes session and drops its store once unleased.
func (a *Arena) Close(ctx context.Context, session string) {
	a.mu.Lock()
	s := a.sessions[session]
	delete(a.sessions, session)
	a.mu.Unlock()
	if s != nil {
		a.retire(ctx, session, s)
	}
}

// Sessions returns the number of live sessions.
func (a *Arena) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *Arena) retire(ctx context.Context, session string, s *slot) {
	a.mu.Lock()
	s.retired = true
	refs := s.refs
	a.mu.Unlock()
	if refs == 0 {
		a.drop(ctx, s)
		return
	}
	a.log.Debug("store retired with active leases", zap.String("session", session), zap.Int("leases", refs))
}

func (a *Arena) release(ctx context.Context, s *slot) {
	a.mu.Lock()
	s.refs--
	drop := s.retired && s.refs == 0
	a.mu.Unlock()
	if drop {
		a.drop(ctx, s)
	}
}

func (a *Arena) drop(ctx context.Context, s *slot) {
	if err := s.store.Drop(ctx); err != nil {
		a.log.Warn("drop vector store", zap.Error(err))
	}
}

package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"petapt/internal/cartsync"
	"petapt/internal/checkout"
	"petapt/internal/domain"
	"petapt/internal/merge"
	"petapt/internal/repository/cart"
	"petapt/internal/sessionstore"
)

// ErrUnknownSession is returned for a session id that was never issued.
var ErrUnknownSession = errors.New("unknown session")

// Session bundles the per-session components around one identity resolver.
type Session struct {
	ID       string
	Identity *Resolver
	Cart     *cartsync.Synchronizer
	Merge    *merge.Procedure
	Checkout *checkout.Orchestrator
}

type Deps struct {
	Store       sessionstore.Store
	Provisioner Provisioner
	Carts       cart.Repository
	Addresses   checkout.AddressBook
	Catalog     checkout.Catalog
	Orders      checkout.OrderStore
	Publisher   checkout.Publisher
	Logger      *log.Logger
}

// Registry keeps live sessions. Sessions not in memory are rebuilt from the store.
type Registry struct {
	deps    Deps
	logger  *log.Logger
	now     func() time.Time
	restore singleflight.Group

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{deps: deps, logger: logger, now: time.Now, sessions: make(map[string]*entry)}
}

// Create starts a new session and provisions its anonymous identity.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	s := r.build(uuid.NewString())
	r.mu.Lock()
	r.sessions[s.ID] = &entry{session: s, lastSeen: r.now()}
	r.mu.Unlock()
	if _, err := s.Identity.Current(ctx); err != nil {
		// The session is kept; the next read retries provisioning.
		r.logger.Printf("session registry: create session=%s err=%v", s.ID, err)
		return s, err
	}
	return s, nil
}

// Get returns the session for id, restoring it after a process restart. The caller must have
// verified that id was issued by this service. Concurrent restores of one id share a single
// restore and merge recovery.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrUnknownSession
	}
	if s, ok := r.lookup(id); ok {
		return s, nil
	}

	v, err, _ := r.restore.Do(id, func() (any, error) {
		if s, ok := r.lookup(id); ok {
			return s, nil
		}
		s := r.build(id)
		identity, err := s.Identity.Restore(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Merge.Recover(ctx, identity); err != nil {
			r.logger.Printf("session registry: merge recovery session=%s err=%v", id, err)
		}
		r.mu.Lock()
		r.sessions[id] = &entry{session: s, lastSeen: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Forget drops a session from memory. Its persisted state is kept.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep forgets sessions not used for longer than idle and returns how many were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep on every tick until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.logger.Printf("session registry: sweeper started interval=%s idle=%s", interval, idle)
	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.logger.Printf("session registry: evicted idle sessions count=%d live=%d", n, r.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) build(id string) *Session {
	resolver := NewResolver(id, r.deps.Store, r.deps.Provisioner, r.logger)
	carts := cartsync.New(r.deps.Carts, resolver, r.logger)
	mp := merge.New(r.deps.Carts, r.deps.Store, id, r.logger)
	orch := checkout.New(checkout.Deps{
		Cart:      carts,
		Identity:  resolver,
		Addresses: r.deps.Addresses,
		Catalog:   r.deps.Catalog,
		Orders:    r.deps.Orders,
		Publisher: r.deps.Publisher,
		Logger:    r.logger,
	})
	// Anonymous writes still queued must land before the merge reads the anonymous cart.
	// Merge then runs before the cart refetch so the refetch sees the merged lines.
	resolver.OnIdentityChange(func(ctx context.Context, t domain.Transition) {
		if !t.IsUpgrade() {
			return
		}
		if err := carts.Drain(ctx); err != nil {
			r.logger.Printf("session registry: drain before merge session=%s err=%v", id, err)
		}
	})
	resolver.OnIdentityChange(mp.HandleTransition)
	resolver.OnIdentityChange(carts.HandleTransition)
	return &Session{ID: id, Identity: resolver, Cart: carts, Merge: mp, Checkout: orch}
}

// Package session tracks the shopper identity of one client session and wires the
// per-session cart, merge and checkout components to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"petapt/internal/domain"
	"petapt/internal/sessionstore"
)

// ErrIdentityDowngrade is returned when an authenticated session is asked to become another user.
var ErrIdentityDowngrade = errors.New("session already authenticated as another user")

// ErrUnavailable wraps failures of the identity backends: anonymous provisioning and the
// session store.
var ErrUnavailable = errors.New("identity service unavailable")

// Provisioner creates anonymous principals. It is a remote call.
type Provisioner interface {
	CreateAnonymous(ctx context.Context) (string, error)
}

// Listener observes identity transitions. It runs synchronously on the transitioning call.
type Listener func(ctx context.Context, t domain.Transition)

type subscription struct {
	fn Listener
}

// Resolver holds the identity of a single session. Identity levels only increase.
type Resolver struct {
	sessionID   string
	store       sessionstore.Store
	provisioner Provisioner
	logger      *log.Logger

	// opMu serializes transitions; mu guards the fields below.
	opMu     sync.Mutex
	mu       sync.Mutex
	identity domain.Identity
	subs     []*subscription
}

func NewResolver(sessionID string, store sessionstore.Store, provisioner Provisioner, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{sessionID: sessionID, store: store, provisioner: provisioner, logger: logger}
}

func (r *Resolver) SessionID() string { return r.sessionID }

// Peek returns the identity without provisioning.
func (r *Resolver) Peek() domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

func (r *Resolver) IsAnonymous() bool {
	return r.Peek().IsAnonymous()
}

// Current returns the identity, provisioning an anonymous one on first use. If provisioning
// fails the session stays without identity and the next call tries again.
func (r *Resolver) Current(ctx context.Context) (domain.Identity, error) {
	if id := r.Peek(); !id.IsZero() {
		return id, nil
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if id := r.Peek(); !id.IsZero() {
		return id, nil
	}

	token, err := r.provisioner.CreateAnonymous(ctx)
	if err != nil {
		r.logger.Printf("session: provision anonymous session=%s err=%v", r.sessionID, err)
		return domain.Identity{}, fmt.Errorf("%w: provision anonymous identity: %w", ErrUnavailable, err)
	}
	next := domain.Anonymous(token)
	if err := r.store.SaveMarker(ctx, r.sessionID, sessionstore.Marker{AnonymousToken: token}); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: save anonymous marker: %w", ErrUnavailable, err)
	}
	if err := r.store.SaveIdentity(ctx, r.sessionID, next); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: save identity: %w", ErrUnavailable, err)
	}
	r.logger.Printf("session: provisioned anonymous session=%s", r.sessionID)
	r.transition(ctx, next)
	return next, nil
}

// Authenticate moves the session to userID. Repeating it for the same user is a no-op.
func (r *Resolver) Authenticate(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()

	cur := r.Peek()
	if cur.IsAuthenticated() {
		if cur.UserID == userID {
			return nil
		}
		return ErrIdentityDowngrade
	}
	next := domain.Authenticated(userID)
	if err := r.store.SaveIdentity(ctx, r.sessionID, next); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	r.logger.Printf("session: authenticated session=%s user_id=%s", r.sessionID, userID)
	r.transition(ctx, next)
	return nil
}

// Restore loads the persisted identity. It does not notify subscribers.
func (r *Resolver) Restore(ctx context.Context) (domain.Identity, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	id, err := r.store.LoadIdentity(ctx, r.sessionID)
	if errors.Is(err, sessionstore.ErrNoState) {
		return domain.Identity{}, nil
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	r.mu.Lock()
	if id.Kind > r.identity.Kind {
		r.identity = id
	}
	id = r.identity
	r.mu.Unlock()
	return id, nil
}

// OnIdentityChange registers fn and returns a function that removes it.
func (r *Resolver) OnIdentityChange(fn Listener) func() {
	sub := &subscription{fn: fn}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s == sub {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// transition must be called with opMu held.
func (r *Resolver) transition(ctx context.Context, next domain.Identity) {
	r.mu.Lock()
	t := domain.Transition{From: r.identity, To: next}
	r.identity = next
	subs := make([]*subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(ctx, t)
	}
}

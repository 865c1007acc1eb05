// Package merge folds an anonymous shopper's cart into their authenticated cart.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"petapt/internal/domain"
	"petapt/internal/repository/cart"
	"petapt/internal/sessionstore"
)

type Repository interface {
	MergeAnonymous(ctx context.Context, owner, anonymousOwner, attemptID string) (cart.MergeResult, error)
}

// Procedure runs the merge for one session. The anonymous token and the attempt id live in the
// session marker; the marker is deleted only after the repository confirmed the merge.
type Procedure struct {
	repo      Repository
	markers   sessionstore.Store
	sessionID string
	logger    *log.Logger
	newID     func() string

	mu sync.Mutex
}

func New(repo Repository, markers sessionstore.Store, sessionID string, logger *log.Logger) *Procedure {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Procedure{repo: repo, markers: markers, sessionID: sessionID, logger: logger, newID: uuid.NewString}
}

// HandleTransition merges on an anonymous to authenticated transition. Failures are logged;
// the marker is kept so the next transition or process start retries.
func (p *Procedure) HandleTransition(ctx context.Context, t domain.Transition) {
	if !t.IsUpgrade() {
		return
	}
	if err := p.Merge(ctx, t.To); err != nil {
		p.logger.Printf("merge: session=%s owner=%s err=%v", p.sessionID, t.To.OwnerKey(), err)
	}
}

// Recover is the process start path: an authenticated session that still carries a marker
// had its transition in an earlier process.
func (p *Procedure) Recover(ctx context.Context, identity domain.Identity) error {
	if !identity.IsAuthenticated() {
		return nil
	}
	return p.Merge(ctx, identity)
}

// Merge moves the marker's anonymous cart onto target. Without a marker it does nothing.
func (p *Procedure) Merge(ctx context.Context, target domain.Identity) error {
	if !target.IsAuthenticated() {
		return fmt.Errorf("merge target must be authenticated, got %s", target.Kind)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	marker, err := p.markers.LoadMarker(ctx, p.sessionID)
	if errors.Is(err, sessionstore.ErrNoState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load marker: %w", err)
	}
	if marker.AttemptID == "" {
		marker.AttemptID = p.newID()
		if err := p.markers.SaveMarker(ctx, p.sessionID, marker); err != nil {
			return fmt.Errorf("save merge attempt: %w", err)
		}
	}

	res, err := p.repo.MergeAnonymous(ctx, target.OwnerKey(), domain.AnonymousOwner(marker.AnonymousToken), marker.AttemptID)
	if err != nil {
		return fmt.Errorf("merge attempt_id=%s: %w", marker.AttemptID, err)
	}
	if err := p.markers.DeleteMarker(ctx, p.sessionID); err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	p.logger.Printf("merge: session=%s owner=%s attempt_id=%s lines=%d replay=%v",
		p.sessionID, target.OwnerKey(), marker.AttemptID, res.LinesMerged, res.AlreadyApplied)
	return nil
}

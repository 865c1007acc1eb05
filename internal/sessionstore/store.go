// Package sessionstore persists per-session shopper state across process restarts:
// the current identity and the anonymous-cart marker used by the merge procedure.
package sessionstore

import (
	"context"
	"errors"

	"petapt/internal/domain"
)

// ErrNoState is returned when nothing has been persisted for the requested key.
var ErrNoState = errors.New("no session state")

// Marker references the anonymous cart that still has to be merged after authentication.
// AttemptID is the merge idempotency key; it is empty until the first merge attempt.
type Marker struct {
	AnonymousToken string `json:"anonymousToken"`
	AttemptID      string `json:"attemptId,omitempty"`
}

type Store interface {
	LoadIdentity(ctx context.Context, sessionID string) (domain.Identity, error)
	SaveIdentity(ctx context.Context, sessionID string, identity domain.Identity) error
	LoadMarker(ctx context.Context, sessionID string) (Marker, error)
	SaveMarker(ctx context.Context, sessionID string, marker Marker) error
	DeleteMarker(ctx context.Context, sessionID string) error
}

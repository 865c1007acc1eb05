package cart

import (
	"context"

	"petapt/internal/domain"
)

// AnyRevision disables the revision check of a conditional write.
const AnyRevision int64 = -1

// MergeResult describes the outcome of MergeAnonymous.
type MergeResult struct {
	LinesMerged    int
	AlreadyApplied bool
}

// Repository is the durable store of cart lines. Every call is scoped to one owner key
// (domain.Identity.OwnerKey).
//
// Conditional writes compare expectedRevision with the stored line revision and return
// domain.ErrRevisionConflict on mismatch. For UpsertLine, expectedRevision 0 means the line
// must not exist yet.
type Repository interface {
	List(ctx context.Context, owner string) ([]domain.CartLine, error)
	UpsertLine(ctx context.Context, owner, productID, variantID string, delta int, expectedRevision int64) error
	SetLineQuantity(ctx context.Context, owner, lineID string, quantity int, expectedRevision int64) error
	RemoveLine(ctx context.Context, owner, lineID string) error
	Clear(ctx context.Context, owner string) error
	// MergeAnonymous folds every line of anonymousOwner into owner with upsert semantics and
	// records attemptID. Replaying an applied attemptID changes nothing.
	MergeAnonymous(ctx context.Context, owner, anonymousOwner, attemptID string) (MergeResult, error)
}

func checkRevision(expected, actual int64) error {
	if expected != AnyRevision && expected != actual {
		return domain.ErrRevisionConflict
	}
	return nil
}

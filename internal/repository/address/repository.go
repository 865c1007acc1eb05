package address

import (
	"context"

	"petapt/internal/domain"
)

// Repository stores addresses of authenticated owners.
type Repository interface {
	List(ctx context.Context, owner string) ([]domain.Address, error)
	Get(ctx context.Context, owner, id string) (*domain.Address, error)
	// Create inserts a. If a.IsDefault is set, or the owner has no address yet, the new
	// address becomes the only default.
	Create(ctx context.Context, owner string, a domain.Address) (*domain.Address, error)
	// SetDefault flags id as default and clears every other default of owner in one statement.
	SetDefault(ctx context.Context, owner, id string) error
}

package order

import (
	"context"
	"time"

	"petapt/internal/domain"
)

// Repository stores orders. Header and lines are separate writes; placement_state records
// whether every line made it.
type Repository interface {
	Create(ctx context.Context, header domain.Order) (string, error)
	AddLine(ctx context.Context, orderID string, line domain.OrderLine) (string, error)
	MarkComplete(ctx context.Context, orderID string) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Order, error)
	// ListIncomplete returns orders still incomplete that were created before olderThan.
	ListIncomplete(ctx context.Context, olderThan time.Time) ([]domain.Order, error)
	Void(ctx context.Context, orderID string) error
}

package product

import (
	"context"

	"petapt/internal/domain"
)

// Repository stores products with their option sets and generated variants.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	// GetByID loads the product with options (in position order) and variants.
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByKey(ctx context.Context, key string) (*domain.Product, error)
	// Upsert inserts or updates the product header by key.
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
	// SetOptions makes the stored option set equal to options, matching options by name and
	// values by label so existing ids survive. Returned options carry their ids.
	SetOptions(ctx context.Context, productID string, options []domain.ProductOption) ([]domain.ProductOption, error)
	// ReplaceVariants makes the stored variant set equal to variants in one transaction,
	// keeping ids of variants whose composite key already exists.
	ReplaceVariants(ctx context.Context, productID string, variants []domain.Variant) ([]domain.Variant, error)
}

// Package catalog exposes product lookup and the variant engine to the storefront.
package catalog

import (
	"context"
	"io"
	"log"

	"petapt/internal/domain"
	"petapt/internal/variant"
)

type productRepo interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ReplaceVariants(ctx context.Context, productID string, variants []domain.Variant) ([]domain.Variant, error)
}

type Service struct {
	repo   productRepo
	logger *log.Logger
}

func New(repo productRepo, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// RegenerateVariants rebuilds the product's variant matrix from its current options, keeping
// price, stock and active flag of variants that still match, and persists the result.
func (s *Service) RegenerateVariants(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	drafts := variant.Regenerate(*p, p.Variants)
	variants := make([]domain.Variant, 0, len(drafts))
	matched := 0
	for _, d := range drafts {
		if d.Matched {
			matched++
		}
		variants = append(variants, domain.Variant{
			ProductID:  p.ID,
			Key:        d.Key,
			SKU:        variant.SKU(p.Key, d.Key, p.ValueLabel),
			PriceCents: d.PriceCents,
			Stock:      d.Stock,
			Active:     d.Active,
		})
	}
	saved, err := s.repo.ReplaceVariants(ctx, p.ID, variants)
	if err != nil {
		s.logger.Printf("catalog: regenerate product_id=%s error=%v", p.ID, err)
		return nil, err
	}
	s.logger.Printf("catalog: regenerated product_id=%s variants=%d carried=%d dropped=%d",
		p.ID, len(saved), matched, max(0, len(p.Variants)-matched))
	p.Variants = saved
	return p, nil
}

// ResolveVariant returns the purchasable variant for a full selection, or domain.ErrNotFound.
func (s *Service) ResolveVariant(ctx context.Context, productID string, selection map[string]string) (*domain.Variant, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	v := variant.ResolveSelection(p.Variants, selection)
	if v == nil {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (s *Service) Availability(ctx context.Context, productID string, selection map[string]string) ([]variant.ValueAvailability, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return variant.Availability(*p, selection), nil
}

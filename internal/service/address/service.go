// Package address manages the address book of authenticated shoppers.
package address

import (
	"context"
	"errors"
	"strings"

	"petapt/internal/domain"
)

var (
	ErrNotAuthenticated = errors.New("address book requires an authenticated identity")
	ErrInvalidAddress   = errors.New("street, city and country are required")
)

type addressRepo interface {
	List(ctx context.Context, owner string) ([]domain.Address, error)
	Get(ctx context.Context, owner, id string) (*domain.Address, error)
	Create(ctx context.Context, owner string, a domain.Address) (*domain.Address, error)
	SetDefault(ctx context.Context, owner, id string) error
}

type Service struct {
	repo addressRepo
}

func New(repo addressRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, id domain.Identity) ([]domain.Address, error) {
	owner, err := ownerOf(id)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, owner)
}

func (s *Service) Create(ctx context.Context, id domain.Identity, a domain.Address) (*domain.Address, error) {
	owner, err := ownerOf(id)
	if err != nil {
		return nil, err
	}
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Street == "" || a.City == "" || a.Country == "" {
		return nil, ErrInvalidAddress
	}
	return s.repo.Create(ctx, owner, a)
}

func (s *Service) SetDefault(ctx context.Context, id domain.Identity, addressID string) error {
	owner, err := ownerOf(id)
	if err != nil {
		return err
	}
	return s.repo.SetDefault(ctx, owner, addressID)
}

func ownerOf(id domain.Identity) (string, error) {
	if !id.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	return id.OwnerKey(), nil
}

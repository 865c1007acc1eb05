package address

import (
	"context"
	"testing"

	"petapt/internal/domain"
)

type stubRepo struct {
	lastOwner   string
	lastAddress domain.Address
	defaultID   string
}

func (r *stubRepo) List(_ context.Context, owner string) ([]domain.Address, error) {
	r.lastOwner = owner
	return nil, nil
}

func (r *stubRepo) Get(_ context.Context, owner, id string) (*domain.Address, error) {
	r.lastOwner = owner
	return nil, domain.ErrNotFound
}

func (r *stubRepo) Create(_ context.Context, owner string, a domain.Address) (*domain.Address, error) {
	r.lastOwner = owner
	r.lastAddress = a
	a.ID = "addr-1"
	return &a, nil
}

func (r *stubRepo) SetDefault(_ context.Context, owner, id string) error {
	r.lastOwner = owner
	r.defaultID = id
	return nil
}

func TestRequiresAuthenticatedIdentity(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo)
	ctx := context.Background()
	anon := domain.Anonymous("tok")

	if _, err := svc.List(ctx, anon); err != ErrNotAuthenticated {
		t.Fatalf("List: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.Identity{}, domain.Address{Street: "s", City: "c", Country: "lv"}); err != ErrNotAuthenticated {
		t.Fatalf("Create: expected ErrNotAuthenticated, got %v", err)
	}
	if err := svc.SetDefault(ctx, anon, "a"); err != ErrNotAuthenticated {
		t.Fatalf("SetDefault: expected ErrNotAuthenticated, got %v", err)
	}
	if repo.lastOwner != "" {
		t.Fatalf("repository should not be called, got owner %q", repo.lastOwner)
	}
}

func TestCreateNormalizesAndScopesToOwner(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo)
	user := domain.Authenticated("42")

	if _, err := svc.Create(context.Background(), user, domain.Address{Street: " Main 1 ", City: "Riga", Country: " lv"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.lastOwner != "user:42" {
		t.Fatalf("expected owner user:42, got %q", repo.lastOwner)
	}
	if repo.lastAddress.Street != "Main 1" || repo.lastAddress.Country != "LV" {
		t.Fatalf("unexpected address %+v", repo.lastAddress)
	}

	if _, err := svc.Create(context.Background(), user, domain.Address{City: "Riga", Country: "LV"}); err != ErrInvalidAddress {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}

	if err := svc.SetDefault(context.Background(), user, "addr-9"); err != nil || repo.defaultID != "addr-9" {
		t.Fatalf("SetDefault: err=%v id=%q", err, repo.defaultID)
	}
}

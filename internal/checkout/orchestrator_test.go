package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"petapt/internal/cartsync"
	"petapt/internal/domain"
	"petapt/internal/repository/cart"
)

type identityStub struct{ id domain.Identity }

func (s identityStub) Peek() domain.Identity { return s.id }

type addressStub struct {
	owned map[string]string // address id -> owner
	err   error
}

func (s *addressStub) Get(_ context.Context, owner, id string) (*domain.Address, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.owned[id] != owner {
		return nil, domain.ErrNotFound
	}
	return &domain.Address{ID: id, Owner: owner}, nil
}

type catalogStub struct {
	products map[string]*domain.Product
	calls    int
	mu       sync.Mutex
}

func (s *catalogStub) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type orderStub struct {
	header      domain.Order
	lines       []domain.OrderLine
	created     int
	completed   []string
	createErr   error
	failOnLine  int // 1-based; 0 disables
	completeErr error
	completeTry int
}

func (s *orderStub) Create(_ context.Context, header domain.Order) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created++
	s.header = header
	return "order-1", nil
}

func (s *orderStub) AddLine(_ context.Context, _ string, line domain.OrderLine) (string, error) {
	if s.failOnLine > 0 && len(s.lines)+1 == s.failOnLine {
		return "", errors.New("write timeout")
	}
	s.lines = append(s.lines, line)
	return "line", nil
}

func (s *orderStub) MarkComplete(_ context.Context, id string) error {
	s.completeTry++
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = append(s.completed, id)
	return nil
}

type publisherStub struct {
	published []domain.Order
	err       error
}

func (s *publisherStub) PublishOrderPlaced(_ context.Context, o domain.Order) error {
	s.published = append(s.published, o)
	return s.err
}

type clearFailRepo struct{ *cart.Memory }

func (clearFailRepo) Clear(context.Context, string) error { return errors.New("clear failed") }

const owner = "user:u1"

var placedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	orch      *Orchestrator
	repo      *cart.Memory
	orders    *orderStub
	catalog   *catalogStub
	publisher *publisherStub
}

func newFixture(t *testing.T, id domain.Identity, failClear bool) *fixture {
	t.Helper()
	mem := cart.NewMemory()
	var repo cartsync.Repository = mem
	if failClear {
		repo = clearFailRepo{mem}
	}
	variantPrice := int64(450)
	catalog := &catalogStub{products: map[string]*domain.Product{
		"p1": {ID: "p1", Name: "Dry food", BasePriceCents: 500, Currency: "EUR", Variants: []domain.Variant{
			{ID: "v1", ProductID: "p1", SKU: "DRY-1KG", PriceCents: variantPrice, Stock: 10, Active: true},
			{ID: "v2", ProductID: "p1", SKU: "DRY-6KG", PriceCents: 2000, Stock: 10, Active: false},
		}},
		"p2": {ID: "p2", Name: "Treats", BasePriceCents: 200, Currency: "EUR"},
	}}
	mem.SetDisplay(domain.LineKey{ProductID: "p1", VariantID: "v1"}, domain.LineDisplay{BasePriceCents: 500, VariantPriceCents: &variantPrice})
	mem.SetDisplay(domain.LineKey{ProductID: "p2"}, domain.LineDisplay{BasePriceCents: 200})

	ident := identityStub{id: id}
	f := &fixture{repo: mem, orders: &orderStub{}, catalog: catalog, publisher: &publisherStub{}}
	f.orch = New(Deps{
		Cart:      cartsync.New(repo, ident, nil),
		Identity:  ident,
		Addresses: &addressStub{owned: map[string]string{"addr-1": owner, "addr-2": owner, "addr-x": "user:other"}},
		Catalog:   catalog,
		Orders:    f.orders,
		Publisher: f.publisher,
		Number:    func() string { return "PA-TEST-1" },
		Now:       func() time.Time { return placedAt },
	})
	return f
}

func (f *fixture) fill(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.repo.UpsertLine(ctx, owner, "p1", "v1", 3, cart.AnyRevision); err != nil {
		t.Fatalf("seed line: %v", err)
	}
	if err := f.repo.UpsertLine(ctx, owner, "p2", "", 1, cart.AnyRevision); err != nil {
		t.Fatalf("seed line: %v", err)
	}
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPlaceOrder_TotalsMatchLines(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), false)
	f.fill(t)
	f.orch.SetChallenge(true)

	res := f.orch.PlaceOrder(ctxT(t), "addr-1")
	if res.Outcome != OutcomeSucceeded || res.OrderID != "order-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	h := f.orders.header
	if h.SubtotalCents != 1550 || h.TotalCents != 1550 {
		t.Fatalf("expected subtotal=total=1550, got %d/%d", h.SubtotalCents, h.TotalCents)
	}
	if h.Status != domain.OrderStatusNew || h.PaymentStatus != domain.PaymentStatusPending || h.PaymentMethod != domain.PaymentMethodPayOnDelivery {
		t.Fatalf("unexpected header flags %+v", h)
	}
	if h.PlacementState != domain.PlacementIncomplete || h.Number != "PA-TEST-1" {
		t.Fatalf("header must be written incomplete with a number, got %+v", h)
	}
	if h.ShippingAddressID != "addr-1" || h.BillingAddressID != "addr-1" {
		t.Fatalf("billing should default to shipping, got %+v", h)
	}
	if len(f.orders.lines) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(f.orders.lines))
	}
	var sum int64
	for _, l := range f.orders.lines {
		sum += l.TotalPriceCents
	}
	if sum != 1550 {
		t.Fatalf("line totals sum to %d", sum)
	}
	if f.orders.lines[0].UnitPriceCents != 450 || f.orders.lines[0].SKU != "DRY-1KG" {
		t.Fatalf("variant price not used: %+v", f.orders.lines[0])
	}
	if len(f.orders.completed) != 1 || res.Order.PlacementState != domain.PlacementComplete {
		t.Fatalf("order not marked complete")
	}
	if lines, _ := f.repo.List(context.Background(), owner); len(lines) != 0 {
		t.Fatalf("cart not cleared: %+v", lines)
	}
	if len(f.publisher.published) != 1 {
		t.Fatalf("order not published")
	}
	if !h.CreatedAt.Equal(placedAt) || !f.publisher.published[0].CreatedAt.Equal(placedAt) {
		t.Fatalf("placement time not carried: header=%s event=%s", h.CreatedAt, f.publisher.published[0].CreatedAt)
	}
	if f.orch.State() != StateSucceeded {
		t.Fatalf("unexpected state %s", f.orch.State())
	}
}

func TestPlaceOrder_PreconditionsDoNotTouchStorage(t *testing.T) {
	cases := []struct {
		name      string
		identity  domain.Identity
		fill      bool
		challenge bool
		address   string
		want      error
	}{
		{"anonymous", domain.Anonymous("tok"), true, true, "addr-1", ErrNotAuthenticated},
		{"no address", domain.Authenticated("u1"), true, true, "", ErrAddressRequired},
		{"no challenge", domain.Authenticated("u1"), true, false, "addr-1", ErrChallengeRequired},
		{"empty cart", domain.Authenticated("u1"), false, true, "addr-1", ErrEmptyCart},
		{"foreign address", domain.Authenticated("u1"), true, true, "addr-x", ErrAddressNotOwned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.identity, false)
			if tc.fill {
				f.fill(t)
			}
			f.orch.SetChallenge(tc.challenge)

			res := f.orch.PlaceOrder(ctxT(t), tc.address)
			if res.Outcome != OutcomeRejected || !errors.Is(res.Err, tc.want) {
				t.Fatalf("expected rejection %v, got %+v", tc.want, res)
			}
			if res.Reason == "" {
				t.Fatalf("rejection needs a reason")
			}
			if f.orders.created != 0 || len(f.orders.lines) != 0 {
				t.Fatalf("storage touched on rejection")
			}
			if f.orch.State() != StateIdle {
				t.Fatalf("expected idle after rejection, got %s", f.orch.State())
			}
		})
	}
}

func TestPlaceOrder_InactiveVariantRejected(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), false)
	if err := f.repo.UpsertLine(context.Background(), owner, "p1", "v2", 1, cart.AnyRevision); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.orch.SetChallenge(true)
	res := f.orch.PlaceOrder(ctxT(t), "addr-1")
	if res.Outcome != OutcomeRejected || !errors.Is(res.Err, ErrVariantUnavailable) {
		t.Fatalf("expected variant rejection, got %+v", res)
	}
	if f.orders.created != 0 {
		t.Fatalf("header written for unavailable variant")
	}
}

func TestPlaceOrder_LineFailureResetsChallenge(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), false)
	f.fill(t)
	f.orders.failOnLine = 2
	f.orch.SetChallenge(true)

	res := f.orch.PlaceOrder(ctxT(t), "addr-1")
	if res.Outcome != OutcomeFailed || res.OrderID != "order-1" {
		t.Fatalf("expected failure carrying the order id, got %+v", res)
	}
	if len(f.orders.lines) != 1 || len(f.orders.completed) != 0 {
		t.Fatalf("expected first line kept and order left incomplete")
	}
	if f.orch.ChallengePassed() {
		t.Fatalf("challenge must be reset after failure")
	}
	if f.orch.State() != StateFailed {
		t.Fatalf("unexpected state %s", f.orch.State())
	}
	if lines, _ := f.repo.List(context.Background(), owner); len(lines) != 2 {
		t.Fatalf("cart must survive a failed order")
	}

	res = f.orch.PlaceOrder(ctxT(t), "addr-1")
	if !errors.Is(res.Err, ErrChallengeRequired) {
		t.Fatalf("retry without challenge should be rejected, got %+v", res)
	}
}

func TestPlaceOrder_HeaderFailure(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), false)
	f.fill(t)
	f.orders.createErr = errors.New("connection refused")
	f.orch.SetChallenge(true)

	res := f.orch.PlaceOrder(ctxT(t), "addr-1")
	if res.Outcome != OutcomeFailed || res.OrderID != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.orch.ChallengePassed() {
		t.Fatalf("challenge must be reset")
	}
}

func TestPlaceOrder_CartClearFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), true)
	f.fill(t)
	f.publisher.err = errors.New("broker down")
	f.orch.SetChallenge(true)

	res := f.orch.PlaceOrder(ctxT(t), "addr-1")
	if res.Outcome != OutcomeSucceeded {
		t.Fatalf("clear or publish failure must not fail the order, got %+v", res)
	}
}

func TestPlaceOrder_MarkCompleteFailureIsRetried(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), false)
	f.fill(t)
	f.orders.completeErr = errors.New("connection reset")
	f.orch.SetChallenge(true)

	res := f.orch.PlaceOrder(ctxT(t), "addr-1")
	if res.Outcome != OutcomeSucceeded {
		t.Fatalf("all lines were written, order must succeed, got %+v", res)
	}
	if f.orders.completeTry != markCompleteAttempts {
		t.Fatalf("expected %d mark attempts, got %d", markCompleteAttempts, f.orders.completeTry)
	}
	if res.Order.PlacementState != domain.PlacementIncomplete {
		t.Fatalf("placement state should stay incomplete, got %s", res.Order.PlacementState)
	}
	var sum int64
	for _, l := range f.orders.lines {
		sum += l.TotalPriceCents
	}
	if sum != f.orders.header.SubtotalCents {
		t.Fatalf("stored lines %d must add up to the header subtotal %d", sum, f.orders.header.SubtotalCents)
	}
}

func TestPlaceOrderWithBilling(t *testing.T) {
	f := newFixture(t, domain.Authenticated("u1"), false)
	f.fill(t)
	f.orch.SetChallenge(true)

	res := f.orch.PlaceOrderWithBilling(ctxT(t), "addr-1", "addr-2")
	if res.Outcome != OutcomeSucceeded {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.orders.header.BillingAddressID != "addr-2" {
		t.Fatalf("billing address not used: %+v", f.orders.header)
	}

	f.fill(t)
	res = f.orch.PlaceOrderWithBilling(ctxT(t), "addr-1", "addr-x")
	if !errors.Is(res.Err, ErrAddressNotOwned) {
		t.Fatalf("foreign billing address accepted: %+v", res)
	}
}

// Package checkout turns a synchronized cart into a persisted order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"petapt/internal/cartsync"
	"petapt/internal/domain"
)

const (
	priceLookupLimit     = 4
	markCompleteAttempts = 3
	submitTimeout    = 30 * time.Second
)

type CartSource interface {
	Settle(ctx context.Context) (domain.CartSnapshot, error)
	Clear(ctx context.Context) (*cartsync.Pending, error)
}

type IdentitySource interface {
	Peek() domain.Identity
}

type AddressBook interface {
	Get(ctx context.Context, owner, id string) (*domain.Address, error)
}

type Catalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// OrderStore writes an order in separate steps: header, each line, completion mark.
type OrderStore interface {
	Create(ctx context.Context, header domain.Order) (string, error)
	AddLine(ctx context.Context, orderID string, line domain.OrderLine) (string, error)
	MarkComplete(ctx context.Context, orderID string) error
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}

type Deps struct {
	Cart      CartSource
	Identity  IdentitySource
	Addresses AddressBook
	Catalog   Catalog
	Orders    OrderStore
	Publisher Publisher
	Logger    *log.Logger
	// Number generates human-readable order numbers. Defaults to NewOrderNumber.
	Number func() string
	Now    func() time.Time
}

type Orchestrator struct {
	deps   Deps
	logger *log.Logger

	mu        sync.Mutex
	state     State
	challenge bool
}

func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if deps.Number == nil {
		deps.Number = NewOrderNumber
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{deps: deps, logger: logger}
}

// NewOrderNumber returns numbers like PA-20260314-3F9A1C2B.
func NewOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("PA-%s-%s", time.Now().UTC().Format("20060102"), id[:8])
}

// SetChallenge records the anti-automation widget result.
func (o *Orchestrator) SetChallenge(passed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.challenge = passed
}

func (o *Orchestrator) ChallengePassed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.challenge
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// PlaceOrder places an order shipped and billed to addressID.
func (o *Orchestrator) PlaceOrder(ctx context.Context, addressID string) Result {
	return o.PlaceOrderWithBilling(ctx, addressID, "")
}

// PlaceOrderWithBilling places an order with a separate billing address. An empty
// billingID bills to the shipping address.
func (o *Orchestrator) PlaceOrderWithBilling(ctx context.Context, shippingID, billingID string) Result {
	o.mu.Lock()
	if o.state == StateValidating || o.state == StateSubmitting {
		o.mu.Unlock()
		return Result{Outcome: OutcomeRejected, Reason: ErrInProgress.Error(), Err: ErrInProgress}
	}
	o.state = StateValidating
	challenge := o.challenge
	o.mu.Unlock()

	plan, err := o.validate(ctx, shippingID, billingID, challenge)
	if err != nil {
		o.setState(StateIdle)
		o.logger.Printf("checkout: rejected owner=%s err=%v", o.deps.Identity.Peek().OwnerKey(), err)
		return Result{Outcome: OutcomeRejected, Reason: reason(err), Err: err}
	}

	o.setState(StateSubmitting)
	// Steps are not atomic; a cancelled request must not stop the sequence halfway.
	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()
	return o.submit(subCtx, plan)
}

type plan struct {
	owner    string
	shipping string
	billing  string
	lines    []domain.OrderLine
	subtotal int64
	currency string
}

func (o *Orchestrator) validate(ctx context.Context, shippingID, billingID string, challenge bool) (plan, error) {
	identity := o.deps.Identity.Peek()
	if !identity.IsAuthenticated() {
		return plan{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(shippingID) == "" {
		return plan{}, ErrAddressRequired
	}
	if !challenge {
		return plan{}, ErrChallengeRequired
	}
	snap, err := o.deps.Cart.Settle(ctx)
	if err != nil {
		return plan{}, fmt.Errorf("%w: %v", ErrPricing, err)
	}
	if snap.IsEmpty() {
		return plan{}, ErrEmptyCart
	}

	owner := identity.OwnerKey()
	if billingID == "" {
		billingID = shippingID
	}
	for _, id := range uniq(shippingID, billingID) {
		if _, err := o.deps.Addresses.Get(ctx, owner, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return plan{}, ErrAddressNotOwned
			}
			return plan{}, fmt.Errorf("%w: load address: %v", ErrPricing, err)
		}
	}

	products, err := o.loadProducts(ctx, snap.Lines)
	if err != nil {
		return plan{}, err
	}

	p := plan{owner: owner, shipping: shippingID, billing: billingID}
	for _, l := range snap.Lines {
		product := products[l.ProductID]
		unit := product.BasePriceCents
		line := domain.OrderLine{ProductID: l.ProductID, VariantID: l.VariantID, Name: product.Name, Quantity: l.Quantity}
		if l.VariantID != "" {
			v, ok := product.Variant(l.VariantID)
			if !ok || !v.Active {
				return plan{}, fmt.Errorf("%w: %s", ErrVariantUnavailable, product.Name)
			}
			unit = v.PriceCents
			line.SKU = v.SKU
		}
		line.UnitPriceCents = unit
		line.TotalPriceCents = unit * int64(l.Quantity)
		p.lines = append(p.lines, line)
		p.subtotal += line.TotalPriceCents
		if p.currency == "" {
			p.currency = product.Currency
		}
	}
	return p, nil
}

// loadProducts fetches every product in the cart concurrently.
func (o *Orchestrator) loadProducts(ctx context.Context, lines []domain.CartLine) (map[string]*domain.Product, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	results := make([]*domain.Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(priceLookupLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := o.deps.Catalog.GetByID(gctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("%w: product %s", ErrVariantUnavailable, id)
				}
				return fmt.Errorf("%w: product %s: %v", ErrPricing, id, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Product, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out, nil
}

func (o *Orchestrator) submit(ctx context.Context, p plan) Result {
	order := domain.Order{
		Number:            o.deps.Number(),
		Owner:             p.owner,
		Status:            domain.OrderStatusNew,
		PaymentStatus:     domain.PaymentStatusPending,
		PaymentMethod:     domain.PaymentMethodPayOnDelivery,
		PlacementState:    domain.PlacementIncomplete,
		ShippingAddressID: p.shipping,
		BillingAddressID:  p.billing,
		SubtotalCents:     p.subtotal,
		TotalCents:        p.subtotal,
		Currency:          p.currency,
		CreatedAt:         o.deps.Now().UTC(),
	}

	orderID, err := o.deps.Orders.Create(ctx, order)
	if err != nil {
		o.logger.Printf("checkout: create header owner=%s number=%s err=%v", p.owner, order.Number, err)
		return o.fail(Result{Reason: "order could not be created", Err: err})
	}
	order.ID = orderID

	for i, line := range p.lines {
		lineID, err := o.deps.Orders.AddLine(ctx, orderID, line)
		if err != nil {
			// Header and earlier lines stay; the reconciler picks the order up.
			o.logger.Printf("checkout: add line order_id=%s line=%d/%d err=%v", orderID, i+1, len(p.lines), err)
			return o.fail(Result{OrderID: orderID, Number: order.Number, Reason: "order could not be completed", Err: err})
		}
		line.ID, line.OrderID = lineID, orderID
		order.Lines = append(order.Lines, line)
	}

	if o.markComplete(ctx, orderID) {
		order.PlacementState = domain.PlacementComplete
	}

	o.clearCart(ctx, orderID)
	if o.deps.Publisher != nil {
		if err := o.deps.Publisher.PublishOrderPlaced(ctx, order); err != nil {
			o.logger.Printf("checkout: publish order_id=%s err=%v", orderID, err)
		}
	}

	o.setState(StateSucceeded)
	o.logger.Printf("checkout: placed order_id=%s number=%s owner=%s total=%d", orderID, order.Number, p.owner, order.TotalCents)
	return Result{Outcome: OutcomeSucceeded, OrderID: orderID, Number: order.Number, Order: &order}
}

// markComplete flags the header complete. An order left incomplete here has every line written,
// which the reconciler recognises and completes.
func (o *Orchestrator) markComplete(ctx context.Context, orderID string) bool {
	var err error
	for attempt := 1; attempt <= markCompleteAttempts; attempt++ {
		if err = o.deps.Orders.MarkComplete(ctx, orderID); err == nil {
			return true
		}
		o.logger.Printf("checkout: mark complete order_id=%s attempt=%d err=%v", orderID, attempt, err)
	}
	return false
}

// clearCart empties the cart after a placed order. Failures do not affect the order.
func (o *Orchestrator) clearCart(ctx context.Context, orderID string) {
	pending, err := o.deps.Cart.Clear(ctx)
	if err == nil {
		err = pending.Wait(ctx)
	}
	if err != nil {
		o.logger.Printf("checkout: clear cart after order_id=%s err=%v", orderID, err)
	}
}

func (o *Orchestrator) fail(res Result) Result {
	o.mu.Lock()
	o.state = StateFailed
	o.challenge = false
	o.mu.Unlock()
	res.Outcome = OutcomeFailed
	return res
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// reason returns the shopper-facing message for a rejection.
func reason(err error) string {
	for _, known := range []error{
		ErrNotAuthenticated, ErrAddressRequired, ErrChallengeRequired, ErrEmptyCart,
		ErrAddressNotOwned, ErrVariantUnavailable, ErrPricing,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "order could not be placed"
}

func uniq(ids ...string) []string {
	var out []string
	for _, id := range ids {
		dup := false
		for _, o := range out {
			dup = dup || o == id
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

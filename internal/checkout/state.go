package checkout

import (
	"errors"

	"petapt/internal/domain"
)

// State is the orchestrator's position in Idle -> Validating -> Submitting -> Succeeded | Failed.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// IsTerminal reports whether a placement attempt finished.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeRejected means validation failed and nothing was written.
	OutcomeRejected Outcome = "rejected"
)

// Result is returned by PlaceOrder. OrderID is set on success and, when the header was
// written, on failure too.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	OrderID string        `json:"orderId,omitempty"`
	Number  string        `json:"number,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Order   *domain.Order `json:"order,omitempty"`
	Err     error         `json:"-"`
}

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNotAuthenticated   = errors.New("sign in to place an order")
	ErrAddressRequired    = errors.New("select a shipping address")
	ErrAddressNotOwned    = errors.New("address does not belong to the shopper")
	ErrChallengeRequired  = errors.New("complete the verification challenge")
	ErrVariantUnavailable = errors.New("an item in the cart is no longer available")
	ErrInProgress         = errors.New("an order is already being placed")
	ErrPricing            = errors.New("cart could not be priced")
)

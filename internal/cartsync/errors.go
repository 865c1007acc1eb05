package cartsync

import (
	"errors"
	"fmt"

	"petapt/internal/domain"
)

// ErrNoIdentity is returned when a mutation is attempted before any shopper identity exists.
var ErrNoIdentity = errors.New("no shopper identity")

// Kind classifies failures reported to callers of the synchronizer.
type Kind int

const (
	// KindTransient is a storage or network failure; retrying the same mutation is safe.
	KindTransient Kind = iota + 1
	// KindConflict means the line changed elsewhere; the cache was refreshed and the caller should retry from it.
	KindConflict
	// KindPrecondition means the input itself was rejected.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Error wraps every failure that crosses the synchronizer boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cart %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	kind := KindTransient
	switch {
	case errors.Is(err, domain.ErrRevisionConflict):
		kind = KindConflict
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrNotFound), errors.Is(err, ErrNoIdentity):
		kind = KindPrecondition
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, or 0 if err did not come from the synchronizer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

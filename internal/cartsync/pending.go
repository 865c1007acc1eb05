package cartsync

import "context"

// Pending tracks one mutation after its optimistic apply.
type Pending struct {
	written chan struct{}
	done    chan struct{}
	err     error
}

func newPending() *Pending {
	return &Pending{written: make(chan struct{}), done: make(chan struct{})}
}

// Written is closed once the repository write returned and, on failure, the cache was rolled back.
func (p *Pending) Written() <-chan struct{} { return p.written }

// Done is closed once the reconciling refetch finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the write error. It is only meaningful after Written is closed.
func (p *Pending) Err() error {
	select {
	case <-p.written:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the mutation is reconciled and returns its write error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return &Error{Kind: KindTransient, Op: "wait", Err: ctx.Err()}
	}
}

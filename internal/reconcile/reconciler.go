// Package reconcile finds orders whose multi-step placement never completed.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"petapt/internal/domain"
)

// Policy decides what happens to an incomplete order once it is old enough.
type Policy string

const (
	// PolicyReport only logs the order for manual reconciliation.
	PolicyReport Policy = "report"
	// PolicyVoid marks the order void.
	PolicyVoid Policy = "void"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyReport, PolicyVoid:
		return Policy(s), nil
	case "":
		return PolicyReport, nil
	}
	return "", fmt.Errorf("reconcile: unknown policy %q", s)
}

type Store interface {
	ListIncomplete(ctx context.Context, olderThan time.Time) ([]domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	MarkComplete(ctx context.Context, orderID string) error
	Void(ctx context.Context, orderID string) error
}

type Options struct {
	Interval time.Duration
	// After is the age an incomplete order must reach before the policy applies.
	After  time.Duration
	Policy Policy
}

type Reconciler struct {
	store  Store
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

func New(store Store, opts Options, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.After <= 0 {
		opts.After = 15 * time.Minute
	}
	if opts.Policy == "" {
		opts.Policy = PolicyReport
	}
	return &Reconciler{store: store, opts: opts, logger: logger, now: time.Now}
}

// Report summarizes one pass.
type Report struct {
	Found int
	// Completed counts orders whose lines were all written but the completion mark was lost.
	Completed int
	Voided    int
}

// Run scans on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	r.logger.Printf("reconcile: started interval=%s after=%s policy=%s", r.opts.Interval, r.opts.After, r.opts.Policy)
	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Printf("reconcile: pass failed error=%v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	orders, err := r.store.ListIncomplete(ctx, r.now().Add(-r.opts.After))
	if err != nil {
		return Report{}, err
	}
	rep := Report{Found: len(orders)}
	for _, o := range orders {
		full, err := r.store.Get(ctx, o.ID)
		if err != nil {
			r.logger.Printf("reconcile: load order_id=%s number=%s error=%v", o.ID, o.Number, err)
			continue
		}
		if allLinesWritten(full) {
			if err := r.store.MarkComplete(ctx, o.ID); err != nil {
				r.logger.Printf("reconcile: mark complete order_id=%s number=%s error=%v", o.ID, o.Number, err)
				continue
			}
			rep.Completed++
			r.logger.Printf("reconcile: completed order_id=%s number=%s lines=%d", o.ID, o.Number, len(full.Lines))
			continue
		}
		switch r.opts.Policy {
		case PolicyVoid:
			if err := r.store.Void(ctx, o.ID); err != nil {
				r.logger.Printf("reconcile: void order_id=%s number=%s error=%v", o.ID, o.Number, err)
				continue
			}
			rep.Voided++
			r.logger.Printf("reconcile: voided incomplete order_id=%s number=%s owner=%s", o.ID, o.Number, o.Owner)
		default:
			r.logger.Printf("reconcile: incomplete order_id=%s number=%s owner=%s created_at=%s needs manual review",
				o.ID, o.Number, o.Owner, o.CreatedAt.Format(time.RFC3339))
		}
	}
	return rep, nil
}

// allLinesWritten reports whether the stored lines add up to the header subtotal. The header is
// written with the final subtotal before any line, so a match means only the mark is missing.
func allLinesWritten(o *domain.Order) bool {
	if len(o.Lines) == 0 {
		return false
	}
	var sum int64
	for _, l := range o.Lines {
		sum += l.TotalPriceCents
	}
	return sum == o.SubtotalCents
}

// Package cartsync keeps an in-process cart cache for one shopper session in step with the
// cart repository. Mutations are applied to the cache immediately, written in call order,
// rolled back on failure and always followed by a refetch that replaces the cache with
// repository state.
package cartsync

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"petapt/internal/domain"
	"petapt/internal/repository/cart"
)

const (
	pendingPrefix       = "pending-"
	defaultWriteTimeout = 10 * time.Second
)

// Repository is the subset of the cart repository the synchronizer writes through.
type Repository interface {
	List(ctx context.Context, owner string) ([]domain.CartLine, error)
	UpsertLine(ctx context.Context, owner, productID, variantID string, delta int, expectedRevision int64) error
	SetLineQuantity(ctx context.Context, owner, lineID string, quantity int, expectedRevision int64) error
	RemoveLine(ctx context.Context, owner, lineID string) error
	Clear(ctx context.Context, owner string) error
}

// IdentitySource reports the active identity without provisioning one.
type IdentitySource interface {
	Peek() domain.Identity
}

type mutation struct {
	op      string
	owner   string
	apply   func([]domain.CartLine) []domain.CartLine
	write   func(ctx context.Context, server serverView) error
	pending *Pending
}

type fetchResult struct {
	seq   uint64
	lines []domain.CartLine
}

type Synchronizer struct {
	repo         Repository
	identity     IdentitySource
	logger       *log.Logger
	writeTimeout time.Duration
	group        singleflight.Group

	mu         sync.Mutex
	owner      string
	lines      []domain.CartLine
	server     []domain.CartLine
	loaded     bool
	queue      []*mutation
	tail       *Pending
	fetchSeq   uint64
	appliedSeq uint64
}

func New(repo Repository, identity IdentitySource, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Synchronizer{repo: repo, identity: identity, logger: logger, writeTimeout: defaultWriteTimeout}
}

// Snapshot returns the current cache, optimistic mutations included.
func (s *Synchronizer) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NewCartSnapshot(s.lines)
}

// Load refetches the cart of the active identity and returns the resulting snapshot.
func (s *Synchronizer) Load(ctx context.Context) (domain.CartSnapshot, error) {
	owner := s.identity.Peek().OwnerKey()
	if owner == "" {
		return domain.CartSnapshot{}, classify("load", ErrNoIdentity)
	}
	s.mu.Lock()
	s.switchOwnerLocked(owner)
	s.mu.Unlock()
	if err := s.refetch(ctx, owner); err != nil {
		return s.Snapshot(), classify("load", err)
	}
	return s.Snapshot(), nil
}

// Settle waits for every queued mutation to be reconciled, then refetches so the returned
// snapshot is repository state.
func (s *Synchronizer) Settle(ctx context.Context) (domain.CartSnapshot, error) {
	if err := s.drain(ctx, "settle"); err != nil {
		return s.Snapshot(), err
	}
	s.group.Forget(s.identity.Peek().OwnerKey())
	return s.Load(ctx)
}

// Drain blocks until every mutation queued so far reached the repository and was reconciled.
func (s *Synchronizer) Drain(ctx context.Context) error {
	return s.drain(ctx, "drain")
}

func (s *Synchronizer) drain(ctx context.Context, op string) error {
	s.mu.Lock()
	tail := s.tail
	s.mu.Unlock()
	if tail == nil {
		return nil
	}
	select {
	case <-tail.done:
		return nil
	case <-ctx.Done():
		return classify(op, ctx.Err())
	}
}

// Add increases the quantity of the (productID, variantID) line, creating it if needed.
func (s *Synchronizer) Add(ctx context.Context, productID, variantID string, quantity int) (*Pending, error) {
	if quantity <= 0 {
		return nil, classify("add", domain.ErrInvalidQuantity)
	}
	key := domain.LineKey{ProductID: productID, VariantID: variantID}
	tempID := pendingPrefix + uuid.NewString()
	return s.enqueue(ctx, "add", func(owner string) *mutation {
		return &mutation{
			apply: func(lines []domain.CartLine) []domain.CartLine {
				if i := indexByKey(lines, key); i >= 0 {
					lines[i].Quantity += quantity
					return lines
				}
				return append(lines, domain.CartLine{
					ID:        tempID,
					Owner:     owner,
					ProductID: productID,
					VariantID: variantID,
					Quantity:  quantity,
					Display:   displayFor(lines, productID),
				})
			},
			write: func(ctx context.Context, v serverView) error {
				line, ok := v.byKey(key)
				return s.repo.UpsertLine(ctx, owner, productID, variantID, quantity, v.expected(line, ok))
			},
		}
	})
}

// Update sets the quantity of a line. A quantity of zero or less removes it.
func (s *Synchronizer) Update(ctx context.Context, lineID string, quantity int) (*Pending, error) {
	if quantity <= 0 {
		return s.Remove(ctx, lineID)
	}
	key, hasKey := s.keyOf(lineID)
	return s.enqueue(ctx, "update", func(owner string) *mutation {
		return &mutation{
			apply: func(lines []domain.CartLine) []domain.CartLine {
				if i := locate(lines, lineID, key, hasKey); i >= 0 {
					lines[i].Quantity = quantity
				}
				return lines
			},
			write: func(ctx context.Context, v serverView) error {
				line, ok := v.resolve(lineID, key, hasKey)
				if !ok {
					if v.loaded || strings.HasPrefix(lineID, pendingPrefix) {
						return domain.ErrNotFound
					}
					return s.repo.SetLineQuantity(ctx, owner, lineID, quantity, cart.AnyRevision)
				}
				return s.repo.SetLineQuantity(ctx, owner, line.ID, quantity, line.Revision)
			},
		}
	})
}

// Remove deletes a line. Removing a line that does not exist succeeds.
func (s *Synchronizer) Remove(ctx context.Context, lineID string) (*Pending, error) {
	key, hasKey := s.keyOf(lineID)
	return s.enqueue(ctx, "remove", func(owner string) *mutation {
		return &mutation{
			apply: func(lines []domain.CartLine) []domain.CartLine {
				if i := locate(lines, lineID, key, hasKey); i >= 0 {
					return append(lines[:i], lines[i+1:]...)
				}
				return lines
			},
			write: func(ctx context.Context, v serverView) error {
				id := lineID
				if line, ok := v.resolve(lineID, key, hasKey); ok {
					id = line.ID
				}
				if strings.HasPrefix(id, pendingPrefix) {
					return nil
				}
				return s.repo.RemoveLine(ctx, owner, id)
			},
		}
	})
}

// Clear removes every line of the active identity.
func (s *Synchronizer) Clear(ctx context.Context) (*Pending, error) {
	return s.enqueue(ctx, "clear", func(owner string) *mutation {
		return &mutation{
			apply: func([]domain.CartLine) []domain.CartLine { return nil },
			write: func(ctx context.Context, _ serverView) error {
				return s.repo.Clear(ctx, owner)
			},
		}
	})
}

// HandleTransition drops the cache of the previous identity and loads the new one.
func (s *Synchronizer) HandleTransition(ctx context.Context, t domain.Transition) {
	owner := t.To.OwnerKey()
	s.mu.Lock()
	s.switchOwnerLocked(owner)
	s.mu.Unlock()
	if owner == "" {
		return
	}
	if err := s.refetch(ctx, owner); err != nil {
		s.logger.Printf("cart sync: refetch after identity change owner=%s err=%v", owner, err)
	}
}

func (s *Synchronizer) enqueue(ctx context.Context, op string, build func(owner string) *mutation) (*Pending, error) {
	owner := s.identity.Peek().OwnerKey()
	if owner == "" {
		return nil, classify(op, ErrNoIdentity)
	}
	m := build(owner)
	m.op, m.owner, m.pending = op, owner, newPending()

	s.mu.Lock()
	s.switchOwnerLocked(owner)
	before := cloneLines(s.lines)
	s.lines = m.apply(cloneLines(s.lines))
	s.queue = append(s.queue, m)
	prev := s.tail
	s.tail = m.pending
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), m, before, prev)
	return m.pending, nil
}

func (s *Synchronizer) run(ctx context.Context, m *mutation, before []domain.CartLine, prev *Pending) {
	if prev != nil {
		<-prev.done
	}
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	s.mu.Lock()
	view := serverView{lines: cloneLines(s.server), loaded: s.loaded && s.owner == m.owner}
	s.mu.Unlock()

	err := m.write(ctx, view)

	s.mu.Lock()
	s.dequeueLocked(m)
	if err != nil && s.owner == m.owner {
		// Later mutations stay applied on top of the restored state.
		lines := before
		for _, q := range s.queue {
			if q.owner == m.owner {
				lines = q.apply(cloneLines(lines))
			}
		}
		s.lines = lines
	}
	s.mu.Unlock()
	if err != nil {
		m.pending.err = classify(m.op, err)
		s.logger.Printf("cart sync: %s failed owner=%s err=%v; rolled back", m.op, m.owner, err)
	}
	close(m.pending.written)

	// A refetch already in flight may predate this write.
	s.group.Forget(m.owner)
	if ferr := s.refetch(ctx, m.owner); ferr != nil {
		s.logger.Printf("cart sync: refetch after %s owner=%s err=%v", m.op, m.owner, ferr)
	}
	close(m.pending.done)
}

// refetch replaces the cache with repository state and replays mutations still queued.
func (s *Synchronizer) refetch(ctx context.Context, owner string) error {
	v, err, _ := s.group.Do(owner, func() (any, error) {
		s.mu.Lock()
		s.fetchSeq++
		seq := s.fetchSeq
		s.mu.Unlock()
		lines, err := s.repo.List(ctx, owner)
		return fetchResult{seq: seq, lines: lines}, err
	})
	if err != nil {
		return err
	}
	res := v.(fetchResult)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != owner || res.seq <= s.appliedSeq {
		return nil
	}
	s.appliedSeq = res.seq
	s.server = cloneLines(res.lines)
	s.loaded = true
	lines := cloneLines(res.lines)
	for _, m := range s.queue {
		if m.owner == owner {
			lines = m.apply(lines)
		}
	}
	s.lines = lines
	return nil
}

func (s *Synchronizer) switchOwnerLocked(owner string) {
	if s.owner == owner {
		return
	}
	s.owner = owner
	s.lines = nil
	s.server = nil
	s.loaded = false
}

func (s *Synchronizer) dequeueLocked(m *mutation) {
	for i, q := range s.queue {
		if q == m {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Synchronizer) keyOf(lineID string) (domain.LineKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.ID == lineID {
			return l.Key(), true
		}
	}
	return domain.LineKey{}, false
}

// serverView is the last repository state seen before a write.
type serverView struct {
	lines  []domain.CartLine
	loaded bool
}

func (v serverView) byKey(key domain.LineKey) (domain.CartLine, bool) {
	if i := indexByKey(v.lines, key); i >= 0 {
		return v.lines[i], true
	}
	return domain.CartLine{}, false
}

func (v serverView) resolve(lineID string, key domain.LineKey, hasKey bool) (domain.CartLine, bool) {
	if i := locate(v.lines, lineID, key, hasKey); i >= 0 {
		return v.lines[i], true
	}
	return domain.CartLine{}, false
}

// expected returns the revision an upsert should be conditional on.
func (v serverView) expected(line domain.CartLine, ok bool) int64 {
	switch {
	case !v.loaded:
		return cart.AnyRevision
	case !ok:
		return 0
	default:
		return line.Revision
	}
}

func locate(lines []domain.CartLine, lineID string, key domain.LineKey, hasKey bool) int {
	if hasKey {
		return indexByKey(lines, key)
	}
	for i, l := range lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func indexByKey(lines []domain.CartLine, key domain.LineKey) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// displayFor reuses product data already in the cache so a new optimistic line is priced.
func displayFor(lines []domain.CartLine, productID string) domain.LineDisplay {
	for _, l := range lines {
		if l.ProductID == productID {
			d := l.Display
			d.SKU = ""
			d.VariantPriceCents = nil
			return d
		}
	}
	return domain.LineDisplay{}
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if lines == nil {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}

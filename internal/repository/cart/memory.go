package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"petapt/internal/domain"
)

// Memory is an in-process Repository with the same semantics as the Postgres one.
// Display data is filled from whatever was registered with SetDisplay.
type Memory struct {
	mu       sync.Mutex
	lines    []domain.CartLine
	displays map[domain.LineKey]domain.LineDisplay
	attempts map[string]int
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		displays: make(map[domain.LineKey]domain.LineDisplay),
		attempts: make(map[string]int),
		now:      time.Now,
	}
}

// SetDisplay registers the joined product and variant data for a line key.
func (m *Memory) SetDisplay(key domain.LineKey, display domain.LineDisplay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displays[key] = display
}

// Attempted reports whether a merge attempt id was recorded.
func (m *Memory) Attempted(attemptID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.attempts[attemptID]
	return ok
}

func (m *Memory) List(_ context.Context, owner string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLine
	for _, l := range m.lines {
		if l.Owner != owner {
			continue
		}
		l.Display = m.displays[l.Key()]
		out = append(out, l)
	}
	return out, nil
}

func (m *Memory) UpsertLine(_ context.Context, owner, productID, variantID string, delta int, expectedRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(owner, domain.LineKey{ProductID: productID, VariantID: variantID})
	if i < 0 {
		if expectedRevision > 0 {
			return domain.ErrRevisionConflict
		}
		if delta <= 0 {
			return domain.ErrInvalidQuantity
		}
		m.insert(owner, productID, variantID, delta)
		return nil
	}
	if err := checkRevision(expectedRevision, m.lines[i].Revision); err != nil {
		return err
	}
	m.apply(i, m.lines[i].Quantity+delta)
	return nil
}

func (m *Memory) SetLineQuantity(_ context.Context, owner, lineID string, quantity int, expectedRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findID(owner, lineID)
	if i < 0 {
		if quantity <= 0 {
			return nil
		}
		return domain.ErrNotFound
	}
	if err := checkRevision(expectedRevision, m.lines[i].Revision); err != nil {
		return err
	}
	m.apply(i, quantity)
	return nil
}

func (m *Memory) RemoveLine(_ context.Context, owner, lineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.findID(owner, lineID); i >= 0 {
		m.lines = append(m.lines[:i], m.lines[i+1:]...)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.lines[:0]
	for _, l := range m.lines {
		if l.Owner != owner {
			kept = append(kept, l)
		}
	}
	m.lines = kept
	return nil
}

func (m *Memory) MergeAnonymous(_ context.Context, owner, anonymousOwner, attemptID string) (MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attemptID]; ok {
		return MergeResult{AlreadyApplied: true}, nil
	}
	var anon []domain.CartLine
	kept := make([]domain.CartLine, 0, len(m.lines))
	for _, l := range m.lines {
		if l.Owner == anonymousOwner {
			anon = append(anon, l)
			continue
		}
		kept = append(kept, l)
	}
	m.lines = kept
	for _, l := range anon {
		if i := m.find(owner, l.Key()); i >= 0 {
			m.apply(i, m.lines[i].Quantity+l.Quantity)
			continue
		}
		m.insert(owner, l.ProductID, l.VariantID, l.Quantity)
	}
	m.attempts[attemptID] = len(anon)
	return MergeResult{LinesMerged: len(anon)}, nil
}

func (m *Memory) insert(owner, productID, variantID string, quantity int) {
	m.lines = append(m.lines, domain.CartLine{
		ID:        uuid.NewString(),
		Owner:     owner,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		Revision:  1,
		CreatedAt: m.now(),
	})
}

// apply sets the quantity of line i, deleting it when the result is not positive.
func (m *Memory) apply(i, quantity int) {
	if quantity <= 0 {
		m.lines = append(m.lines[:i], m.lines[i+1:]...)
		return
	}
	m.lines[i].Quantity = quantity
	m.lines[i].Revision++
}

func (m *Memory) find(owner string, key domain.LineKey) int {
	for i, l := range m.lines {
		if l.Owner == owner && l.Key() == key {
			return i
		}
	}
	return -1
}

func (m *Memory) findID(owner, lineID string) int {
	for i, l := range m.lines {
		if l.Owner == owner && l.ID == lineID {
			return i
		}
	}
	return -1
}

package domain

import "time"

// LineKey identifies a cart line within one owner. VariantID is empty for products without variants.
type LineKey struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
}

// CartLine is one row of intended purchase.
type CartLine struct {
	ID        string      `json:"id"`
	Owner     string      `json:"-"`
	ProductID string      `json:"productId"`
	VariantID string      `json:"variantId,omitempty"`
	Quantity  int         `json:"quantity"`
	Revision  int64       `json:"revision"`
	Display   LineDisplay `json:"display"`
	CreatedAt time.Time   `json:"createdAt"`
}

// LineDisplay carries the product/variant data joined onto a line when it is read.
type LineDisplay struct {
	ProductName       string `json:"productName,omitempty"`
	ProductKey        string `json:"productKey,omitempty"`
	SKU               string `json:"sku,omitempty"`
	Currency          string `json:"currency,omitempty"`
	BasePriceCents    int64  `json:"basePriceCents"`
	VariantPriceCents *int64 `json:"variantPriceCents,omitempty"`
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, VariantID: l.VariantID}
}

// UnitPriceCents prefers the variant price over the product base price.
func (l CartLine) UnitPriceCents() int64 {
	if l.VariantID != "" && l.Display.VariantPriceCents != nil {
		return *l.Display.VariantPriceCents
	}
	return l.Display.BasePriceCents
}

func (l CartLine) TotalCents() int64 {
	return l.UnitPriceCents() * int64(l.Quantity)
}

// CartSnapshot is derived from the line set, never stored.
type CartSnapshot struct {
	Lines         []CartLine `json:"lines"`
	SubtotalCents int64      `json:"subtotalCents"`
	ItemCount     int        `json:"itemCount"`
	Currency      string     `json:"currency,omitempty"`
}

// NewCartSnapshot copies lines and recomputes subtotal and item count.
func NewCartSnapshot(lines []CartLine) CartSnapshot {
	out := CartSnapshot{Lines: make([]CartLine, len(lines))}
	copy(out.Lines, lines)
	for _, l := range lines {
		out.SubtotalCents += l.TotalCents()
		out.ItemCount += l.Quantity
		if out.Currency == "" {
			out.Currency = l.Display.Currency
		}
	}
	return out
}

func (s CartSnapshot) IsEmpty() bool { return len(s.Lines) == 0 }

// Find returns the line with the given id.
func (s CartSnapshot) Find(lineID string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return CartLine{}, false
}

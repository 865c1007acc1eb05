package domain

import (
	"strings"
	"time"
)

// OptionValue is one choice of a product option, e.g. "6kg".
type OptionValue struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ProductOption is an option axis with an ordered set of values, e.g. "Weight".
type ProductOption struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Values []OptionValue `json:"values"`
}

// OptionSelection pins one option to one of its values.
type OptionSelection struct {
	OptionID string `json:"optionId"`
	ValueID  string `json:"valueId"`
}

// CompositeKey is the ordered list of option selections identifying a variant within its product.
type CompositeKey []OptionSelection

// String encodes the key for storage and matching. It is not meant to be parsed back.
func (k CompositeKey) String() string {
	var b strings.Builder
	for i, s := range k {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(s.OptionID)
		b.WriteByte('=')
		b.WriteString(s.ValueID)
	}
	return b.String()
}

// Value returns the value chosen for optionID.
func (k CompositeKey) Value(optionID string) (string, bool) {
	for _, s := range k {
		if s.OptionID == optionID {
			return s.ValueID, true
		}
	}
	return "", false
}

// Project keeps only the selections for the given options, in the order of options.
func (k CompositeKey) Project(options []ProductOption) CompositeKey {
	out := make(CompositeKey, 0, len(options))
	for _, o := range options {
		if v, ok := k.Value(o.ID); ok {
			out = append(out, OptionSelection{OptionID: o.ID, ValueID: v})
		}
	}
	return out
}

// Variant is one purchasable point in a product's option-value Cartesian product.
type Variant struct {
	ID         string       `json:"id"`
	ProductID  string       `json:"productId"`
	Key        CompositeKey `json:"key"`
	SKU        string       `json:"sku"`
	PriceCents int64        `json:"priceCents"`
	Stock      int          `json:"stock"`
	Active     bool         `json:"active"`
}

// Purchasable reports whether the variant can currently be fulfilled.
func (v Variant) Purchasable() bool {
	return v.Active && v.Stock > 0
}

type Product struct {
	ID             string          `json:"id"`
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	BasePriceCents int64           `json:"basePriceCents"`
	Currency       string          `json:"currency"`
	Options        []ProductOption `json:"options,omitempty"`
	Variants       []Variant       `json:"variants,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Variant returns the variant with the given id.
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// ValueLabel resolves the display label of an option value.
func (p Product) ValueLabel(optionID, valueID string) string {
	for _, o := range p.Options {
		if o.ID != optionID {
			continue
		}
		for _, v := range o.Values {
			if v.ID == valueID {
				return v.Label
			}
		}
	}
	return valueID
}

// Package variant derives purchasable variants from a product's option set and resolves
// option selections to concrete variants.
package variant

import "petapt/internal/domain"

// Draft is a generated variant before it is persisted.
type Draft struct {
	Key        domain.CompositeKey
	PriceCents int64
	Stock      int
	Active     bool
	// Matched is true when price, stock and active were carried over from a previous variant.
	Matched bool
}

// GenerateMatrix returns the Cartesian product of option values in option order.
// Zero options, or any option without values, yields no drafts.
func GenerateMatrix(options []domain.ProductOption) []Draft {
	if len(options) == 0 {
		return nil
	}
	keys := []domain.CompositeKey{{}}
	for _, opt := range options {
		if len(opt.Values) == 0 {
			return nil
		}
		next := make([]domain.CompositeKey, 0, len(keys)*len(opt.Values))
		for _, prefix := range keys {
			for _, v := range opt.Values {
				k := make(domain.CompositeKey, len(prefix), len(prefix)+1)
				copy(k, prefix)
				k = append(k, domain.OptionSelection{OptionID: opt.ID, ValueID: v.ID})
				next = append(next, k)
			}
		}
		keys = next
	}
	drafts := make([]Draft, len(keys))
	for i, k := range keys {
		drafts[i] = Draft{Key: k, Active: true}
	}
	return drafts
}

// Regenerate rebuilds the matrix for product.Options and carries price, stock and active flag
// over from previous variants whose key matches. A draft with no exact match inherits from the
// first previous variant whose key, projected onto the current option set, equals the draft key;
// this covers an option being removed. Everything else gets the product base price, zero stock
// and active=true. Previous variants with no matching draft are dropped.
func Regenerate(product domain.Product, previous []domain.Variant) []Draft {
	drafts := GenerateMatrix(product.Options)
	exact := make(map[string]domain.Variant, len(previous))
	projected := make(map[string]domain.Variant, len(previous))
	for _, v := range previous {
		if _, ok := exact[v.Key.String()]; !ok {
			exact[v.Key.String()] = v
		}
		p := v.Key.Project(product.Options)
		if len(p) != len(product.Options) {
			continue
		}
		if _, ok := projected[p.String()]; !ok {
			projected[p.String()] = v
		}
	}
	for i := range drafts {
		key := drafts[i].Key.String()
		prev, ok := exact[key]
		if !ok {
			prev, ok = projected[key]
		}
		if ok {
			drafts[i].PriceCents = prev.PriceCents
			drafts[i].Stock = prev.Stock
			drafts[i].Active = prev.Active
			drafts[i].Matched = true
			continue
		}
		drafts[i].PriceCents = product.BasePriceCents
	}
	return drafts
}

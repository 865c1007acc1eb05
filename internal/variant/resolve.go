package variant

import "petapt/internal/domain"

// ResolveSelection returns the variant whose key matches the full selection (optionID -> valueID).
// It returns nil if the selection is incomplete, matches nothing, or the match is inactive or out of stock.
func ResolveSelection(variants []domain.Variant, selection map[string]string) *domain.Variant {
	for i := range variants {
		v := variants[i]
		if len(v.Key) == 0 || len(v.Key) != len(selection) {
			continue
		}
		if !matches(v.Key, selection, "") {
			continue
		}
		if !v.Purchasable() {
			return nil
		}
		return &v
	}
	return nil
}

// IsValueAvailable reports whether some active, in-stock variant has valueID for optionID and
// agrees with every other chosen option in others. The entry for optionID in others is ignored.
func IsValueAvailable(variants []domain.Variant, optionID, valueID string, others map[string]string) bool {
	for _, v := range variants {
		if !v.Purchasable() {
			continue
		}
		got, ok := v.Key.Value(optionID)
		if !ok || got != valueID {
			continue
		}
		if matches(v.Key, others, optionID) {
			return true
		}
	}
	return false
}

// ValueAvailability is the selectable state of one option value.
type ValueAvailability struct {
	OptionID  string `json:"optionId"`
	ValueID   string `json:"valueId"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// Availability reports, for every option value of product, whether it can be chosen given selection.
func Availability(product domain.Product, selection map[string]string) []ValueAvailability {
	var out []ValueAvailability
	for _, opt := range product.Options {
		for _, val := range opt.Values {
			out = append(out, ValueAvailability{
				OptionID:  opt.ID,
				ValueID:   val.ID,
				Label:     val.Label,
				Available: IsValueAvailable(product.Variants, opt.ID, val.ID, selection),
			})
		}
	}
	return out
}

func matches(key domain.CompositeKey, selection map[string]string, skip string) bool {
	for optionID, valueID := range selection {
		if optionID == skip {
			continue
		}
		got, ok := key.Value(optionID)
		if !ok || got != valueID {
			return false
		}
	}
	return true
}

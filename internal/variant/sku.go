package variant

import (
	"strings"

	"petapt/internal/domain"
)

// LabelFunc returns the display label of an option value.
type LabelFunc func(optionID, valueID string) string

// SKU derives a human-readable SKU from the product key and the variant's key.
// It is for display only; the structured key is the source of truth.
func SKU(productKey string, key domain.CompositeKey, labels LabelFunc) string {
	parts := make([]string, 0, len(key)+1)
	parts = append(parts, skuToken(productKey))
	for _, s := range key {
		label := s.ValueID
		if labels != nil {
			label = labels(s.OptionID, s.ValueID)
		}
		parts = append(parts, skuToken(label))
	}
	return strings.Join(parts, "-")
}

func skuToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-' || r == '.':
			b.WriteByte('_')
		}
	}
	return b.String()
}

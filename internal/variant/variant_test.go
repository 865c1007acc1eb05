package variant

import (
	"testing"

	"petapt/internal/domain"
)

func petFoodOptions() []domain.ProductOption {
	return []domain.ProductOption{
		{ID: "weight", Name: "Weight", Values: []domain.OptionValue{{ID: "1kg", Label: "1kg"}, {ID: "6kg", Label: "6kg"}}},
		{ID: "flavor", Name: "Flavor", Values: []domain.OptionValue{{ID: "chicken", Label: "Chicken"}, {ID: "fish", Label: "Fish"}}},
	}
}

func TestGenerateMatrix_Cartesian(t *testing.T) {
	drafts := GenerateMatrix(petFoodOptions())
	if len(drafts) != 4 {
		t.Fatalf("expected 4 drafts, got %d", len(drafts))
	}
	seen := map[string]bool{}
	for _, d := range drafts {
		if len(d.Key) != 2 || d.Key[0].OptionID != "weight" || d.Key[1].OptionID != "flavor" {
			t.Fatalf("key does not follow option order: %+v", d.Key)
		}
		if seen[d.Key.String()] {
			t.Fatalf("duplicate key %s", d.Key.String())
		}
		seen[d.Key.String()] = true
	}
	if drafts[0].Key.String() != "weight=1kg|flavor=chicken" || drafts[3].Key.String() != "weight=6kg|flavor=fish" {
		t.Fatalf("unexpected order: %s .. %s", drafts[0].Key.String(), drafts[3].Key.String())
	}
}

func TestGenerateMatrix_Empty(t *testing.T) {
	if got := GenerateMatrix(nil); len(got) != 0 {
		t.Fatalf("expected no drafts for zero options, got %d", len(got))
	}
	opts := []domain.ProductOption{{ID: "weight"}}
	if got := GenerateMatrix(opts); len(got) != 0 {
		t.Fatalf("expected no drafts for option without values, got %d", len(got))
	}
}

func TestRegenerate_PreservesMatches(t *testing.T) {
	product := domain.Product{BasePriceCents: 500, Options: petFoodOptions()}
	previous := []domain.Variant{
		{ID: "v1", Key: GenerateMatrix(product.Options)[1].Key, PriceCents: 450, Stock: 7, Active: false},
	}
	product.Options[1].Values = append(product.Options[1].Values, domain.OptionValue{ID: "lamb", Label: "Lamb"})

	drafts := Regenerate(product, previous)
	if len(drafts) != 6 {
		t.Fatalf("expected 6 drafts, got %d", len(drafts))
	}
	for _, d := range drafts {
		if d.Key.String() == "weight=1kg|flavor=fish" {
			if !d.Matched || d.PriceCents != 450 || d.Stock != 7 || d.Active {
				t.Fatalf("match not preserved: %+v", d)
			}
			continue
		}
		if d.Matched || d.PriceCents != 500 || d.Stock != 0 || !d.Active {
			t.Fatalf("unexpected defaults for %s: %+v", d.Key.String(), d)
		}
	}
}

func TestRegenerate_OptionRemovedInheritsFirstMatch(t *testing.T) {
	product := domain.Product{BasePriceCents: 500, Options: petFoodOptions()}
	var previous []domain.Variant
	prices := []int64{450, 460, 2100, 2200}
	for i, d := range GenerateMatrix(product.Options) {
		previous = append(previous, domain.Variant{Key: d.Key, PriceCents: prices[i], Stock: i + 1, Active: true})
	}

	product.Options = product.Options[:1]
	drafts := Regenerate(product, previous)
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Key.String() != "weight=1kg" || drafts[0].PriceCents != 450 || drafts[0].Stock != 1 {
		t.Fatalf("unexpected 1kg draft %+v", drafts[0])
	}
	if drafts[1].Key.String() != "weight=6kg" || drafts[1].PriceCents != 2100 || drafts[1].Stock != 3 {
		t.Fatalf("unexpected 6kg draft %+v", drafts[1])
	}
}

func TestRegenerate_DropsRemovedValues(t *testing.T) {
	product := domain.Product{BasePriceCents: 500, Options: petFoodOptions()}
	var previous []domain.Variant
	for _, d := range GenerateMatrix(product.Options) {
		previous = append(previous, domain.Variant{Key: d.Key, PriceCents: 999, Active: true})
	}
	product.Options[0].Values = product.Options[0].Values[1:]

	drafts := Regenerate(product, previous)
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	for _, d := range drafts {
		if v, _ := d.Key.Value("weight"); v != "6kg" {
			t.Fatalf("removed value survived: %s", d.Key.String())
		}
	}
}

func TestSKU(t *testing.T) {
	key := domain.CompositeKey{{OptionID: "weight", ValueID: "w1"}, {OptionID: "flavor", ValueID: "f1"}}
	labels := func(optionID, valueID string) string {
		return map[string]string{"w1": "1 kg", "f1": "Chicken-Rice"}[valueID]
	}
	if got := SKU("dry-food", key, labels); got != "DRY_FOOD-1_KG-CHICKEN_RICE" {
		t.Fatalf("unexpected sku %q", got)
	}
	if got := SKU("dry-food", key, nil); got != "DRY_FOOD-W1-F1" {
		t.Fatalf("unexpected sku without labels %q", got)
	}
}

func stockedVariants() []domain.Variant {
	var out []domain.Variant
	for i, d := range GenerateMatrix(petFoodOptions()) {
		out = append(out, domain.Variant{ID: d.Key.String(), Key: d.Key, Stock: 5, Active: true, PriceCents: int64(100 * (i + 1))})
	}
	// 6kg fish is out of stock, 1kg fish is inactive.
	out[3].Stock = 0
	out[1].Active = false
	return out
}

func TestResolveSelection(t *testing.T) {
	variants := stockedVariants()
	v := ResolveSelection(variants, map[string]string{"weight": "6kg", "flavor": "chicken"})
	if v == nil || v.ID != "weight=6kg|flavor=chicken" {
		t.Fatalf("expected 6kg chicken, got %+v", v)
	}
	if v := ResolveSelection(variants, map[string]string{"weight": "6kg"}); v != nil {
		t.Fatalf("incomplete selection resolved to %+v", v)
	}
	if v := ResolveSelection(variants, map[string]string{"weight": "6kg", "flavor": "fish"}); v != nil {
		t.Fatalf("out of stock variant resolved")
	}
	if v := ResolveSelection(variants, map[string]string{"weight": "1kg", "flavor": "fish"}); v != nil {
		t.Fatalf("inactive variant resolved")
	}
	if v := ResolveSelection(variants, map[string]string{"weight": "3kg", "flavor": "fish"}); v != nil {
		t.Fatalf("unknown value resolved")
	}
}

func TestIsValueAvailable(t *testing.T) {
	variants := stockedVariants()
	if IsValueAvailable(variants, "flavor", "fish", nil) {
		t.Fatalf("fish has no purchasable variant")
	}
	if !IsValueAvailable(variants, "flavor", "chicken", map[string]string{"weight": "6kg"}) {
		t.Fatalf("6kg chicken should be available")
	}
	if IsValueAvailable(variants, "weight", "6kg", map[string]string{"flavor": "fish"}) {
		t.Fatalf("6kg fish should be unavailable")
	}
	if !IsValueAvailable(variants, "weight", "1kg", map[string]string{"weight": "6kg", "flavor": "chicken"}) {
		t.Fatalf("selection for the same option must be ignored")
	}
}

func TestAvailability(t *testing.T) {
	product := domain.Product{Options: petFoodOptions(), Variants: stockedVariants()}
	got := Availability(product, map[string]string{"weight": "6kg"})
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	want := map[string]bool{"1kg": true, "6kg": true, "chicken": true, "fish": false}
	for _, a := range got {
		if a.Available != want[a.ValueID] {
			t.Fatalf("value %s available=%v, want %v", a.ValueID, a.Available, want[a.ValueID])
		}
	}
}

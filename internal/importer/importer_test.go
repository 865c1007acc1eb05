package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"petapt/internal/domain"
	"petapt/internal/service/catalog"
)

// memoryCatalog stores products in memory and assigns ids the way the database would.
type memoryCatalog struct {
	products map[string]*domain.Product
	byKey    map[string]string
	seq      int
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{products: map[string]*domain.Product{}, byKey: map[string]string{}}
}

func (m *memoryCatalog) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *memoryCatalog) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if id, ok := m.byKey[p.Key]; ok {
		existing := m.products[id]
		existing.Name, existing.Description = p.Name, p.Description
		existing.BasePriceCents, existing.Currency = p.BasePriceCents, p.Currency
		out := *existing
		return &out, nil
	}
	if p.ID == "" {
		p.ID = m.nextID("p")
	}
	m.byKey[p.Key] = p.ID
	m.products[p.ID] = &p
	out := p
	return &out, nil
}

func (m *memoryCatalog) SetOptions(_ context.Context, productID string, options []domain.ProductOption) ([]domain.ProductOption, error) {
	p := m.products[productID]
	out := make([]domain.ProductOption, len(options))
	for i, o := range options {
		o.ID = "opt-" + o.Name
		vals := make([]domain.OptionValue, len(o.Values))
		for j, v := range o.Values {
			vals[j] = domain.OptionValue{ID: o.Name + "-" + v.Label, Label: v.Label}
		}
		o.Values = vals
		out[i] = o
	}
	p.Options = out
	return out, nil
}

func (m *memoryCatalog) ReplaceVariants(_ context.Context, productID string, variants []domain.Variant) ([]domain.Variant, error) {
	out := make([]domain.Variant, len(variants))
	for i, v := range variants {
		v.ID = "var-" + v.Key.String()
		out[i] = v
	}
	m.products[productID].Variants = out
	return out, nil
}

func (m *memoryCatalog) List(context.Context) ([]domain.Product, error) { return nil, nil }

func (m *memoryCatalog) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	out.Variants = append([]domain.Variant(nil), p.Variants...)
	return &out, nil
}

func (m *memoryCatalog) product(key string) *domain.Product {
	return m.products[m.byKey[key]]
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `key,name,description,price_cents,currency,options,variant,variant_price_cents,variant_stock,variant_active
dry-food,Dry food,Adult dry food,450,eur,Weight:1kg|6kg;Flavor:chicken|fish,,,,
,,,,,,Weight=6kg;Flavor=fish,2100,12,
,,,,,,Weight=1kg;Flavor=chicken,,5,false
cat-toy,Cat toy,,300,EUR,,,,,`

	repo := newMemoryCatalog()
	imp := NewCSVImporter(strings.NewReader(csvData), repo, catalog.New(repo, nil))

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 products imported, got %d", count)
	}

	food := repo.product("dry-food")
	if food.Currency != "EUR" || food.BasePriceCents != 450 {
		t.Fatalf("unexpected product data: %+v", food)
	}
	if len(food.Variants) != 4 {
		t.Fatalf("expected 4 variants, got %d", len(food.Variants))
	}
	byKey := map[string]domain.Variant{}
	for _, v := range food.Variants {
		byKey[v.Key.String()] = v
	}
	fish := byKey["opt-Weight=Weight-6kg|opt-Flavor=Flavor-fish"]
	if fish.PriceCents != 2100 || fish.Stock != 12 || !fish.Active {
		t.Fatalf("unexpected override result %+v", fish)
	}
	chicken := byKey["opt-Weight=Weight-1kg|opt-Flavor=Flavor-chicken"]
	if chicken.PriceCents != 450 || chicken.Stock != 5 || chicken.Active {
		t.Fatalf("unexpected override result %+v", chicken)
	}
	if fish.SKU != "DRY_FOOD-6KG-FISH" {
		t.Fatalf("unexpected sku %q", fish.SKU)
	}

	if toy := repo.product("cat-toy"); len(toy.Variants) != 0 {
		t.Fatalf("expected no variants without options, got %d", len(toy.Variants))
	}
}

func TestCSVImporter_ReimportKeepsVariantData(t *testing.T) {
	first := `key,name,price_cents,currency,options,variant,variant_price_cents,variant_stock
dry-food,Dry food,450,EUR,Weight:1kg|6kg;Flavor:chicken|fish,,,
,,,,,Weight=6kg;Flavor=chicken,2000,7`
	second := `key,name,price_cents,currency,options
dry-food,Dry food,450,EUR,Weight:1kg|6kg`

	repo := newMemoryCatalog()
	regen := catalog.New(repo, nil)
	if _, err := NewCSVImporter(strings.NewReader(first), repo, regen).Run(context.Background()); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if _, err := NewCSVImporter(strings.NewReader(second), repo, regen).Run(context.Background()); err != nil {
		t.Fatalf("second import: %v", err)
	}

	food := repo.product("dry-food")
	if len(food.Variants) != 2 {
		t.Fatalf("expected 2 variants after removing Flavor, got %d", len(food.Variants))
	}
	six := food.Variants[1]
	if six.PriceCents != 2000 || six.Stock != 7 {
		t.Fatalf("expected 6kg to inherit 2000/7 from first match, got %+v", six)
	}
}

func TestCSVImporter_Errors(t *testing.T) {
	cases := map[string]string{
		"orphan override": "key,name,price_cents,currency,variant\n,,,,Weight=1kg",
		"bad options":     "key,name,price_cents,currency,options\np,P,1,EUR,Weight",
		"unknown value":   "key,name,price_cents,currency,options,variant\np,P,1,EUR,Weight:1kg,\n,,,,,Weight=2kg",
		"missing name":    "key,name,price_cents,currency\np,,1,EUR",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newMemoryCatalog()
			if _, err := NewCSVImporter(strings.NewReader(data), repo, catalog.New(repo, nil)).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(" Weight : 1kg | 6kg ;Flavor:chicken")
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if len(opts) != 2 || opts[0].Name != "Weight" || len(opts[0].Values) != 2 || opts[0].Values[1].Label != "6kg" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if _, err := ParseOptions("Weight:1kg;Weight:2kg"); err == nil {
		t.Fatalf("expected duplicate option error")
	}
}

package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"petapt/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetOptions(ctx context.Context, productID string, options []domain.ProductOption) ([]domain.ProductOption, error)
	ReplaceVariants(ctx context.Context, productID string, variants []domain.Variant) ([]domain.Variant, error)
}

// Regenerator rebuilds a product's variants after its options changed.
type Regenerator interface {
	RegenerateVariants(ctx context.Context, productID string) (*domain.Product, error)
}

// CSVImporter reads product rows with option sets and upserts them.
//
// A product row has a key. Rows without a key that follow it are variant overrides:
//
//	key,name,description,price_cents,currency,options,variant,variant_price_cents,variant_stock,variant_active
//	dry-food,Dry food,,450,EUR,Weight:1kg|6kg;Flavor:chicken|fish,,,,
//	,,,,,,Weight=6kg;Flavor=fish,2100,12,true
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	regen       Regenerator
}

func NewCSVImporter(r io.Reader, repo ProductWriter, regen Regenerator) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		regen:       regen,
	}
}

type csvRow struct {
	ID        string
	Key       string
	Name      string
	Desc      string
	Cents     int64
	Currency  string
	Options   []domain.ProductOption
	Overrides []override
}

// override sets price, stock and active flag of the variant selected by option labels.
type override struct {
	Selection  map[string]string
	PriceCents *int64
	Stock      *int
	Active     *bool
}

// Run parses CSV rows and upserts products grouped by product key.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row, ov, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}

		if row != nil {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		if ov != nil {
			if current == nil {
				return imported, fmt.Errorf("line %d: variant override before any product row", line)
			}
			current.Overrides = append(current.Overrides, *ov)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Key == "" || row.Name == "" || row.Currency == "" || row.Cents < 0 {
		return fmt.Errorf("invalid product row (missing required fields) for key %q", row.Key)
	}
	if row.ID != "" && len(row.ID) != 36 {
		return fmt.Errorf("invalid id for key %q: %s", row.Key, row.ID)
	}

	p, err := i.productRepo.Upsert(ctx, domain.Product{
		ID:             row.ID,
		Key:            row.Key,
		Name:           row.Name,
		Description:    row.Desc,
		BasePriceCents: row.Cents,
		Currency:       row.Currency,
	})
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Key, err)
	}
	if _, err := i.productRepo.SetOptions(ctx, p.ID, row.Options); err != nil {
		return fmt.Errorf("set options %q: %w", row.Key, err)
	}
	regenerated, err := i.regen.RegenerateVariants(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("regenerate variants %q: %w", row.Key, err)
	}
	if len(row.Overrides) == 0 {
		return nil
	}

	variants := regenerated.Variants
	for _, ov := range row.Overrides {
		key, err := selectionKey(regenerated.Options, ov.Selection)
		if err != nil {
			return fmt.Errorf("product %q: %w", row.Key, err)
		}
		idx := -1
		for n, v := range variants {
			if v.Key.String() == key.String() {
				idx = n
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("product %q: no variant for %s", row.Key, key)
		}
		if ov.PriceCents != nil {
			variants[idx].PriceCents = *ov.PriceCents
		}
		if ov.Stock != nil {
			variants[idx].Stock = *ov.Stock
		}
		if ov.Active != nil {
			variants[idx].Active = *ov.Active
		}
	}
	if _, err := i.productRepo.ReplaceVariants(ctx, p.ID, variants); err != nil {
		return fmt.Errorf("apply variant overrides %q: %w", row.Key, err)
	}
	return nil
}

// selectionKey maps option-name → value-label pairs to the structured key in option order.
func selectionKey(options []domain.ProductOption, labels map[string]string) (domain.CompositeKey, error) {
	if len(labels) != len(options) {
		return nil, fmt.Errorf("variant selection needs all %d options", len(options))
	}
	key := make(domain.CompositeKey, 0, len(options))
	for _, opt := range options {
		label, ok := labels[opt.Name]
		if !ok {
			return nil, fmt.Errorf("variant selection missing option %q", opt.Name)
		}
		valueID := ""
		for _, v := range opt.Values {
			if v.Label == label {
				valueID = v.ID
				break
			}
		}
		if valueID == "" {
			return nil, fmt.Errorf("unknown value %q for option %q", label, opt.Name)
		}
		key = append(key, domain.OptionSelection{OptionID: opt.ID, ValueID: valueID})
	}
	return key, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*csvRow, *override, error) {
	key := pick(record, index, "key")
	if key == "" {
		sel := pick(record, index, "variant")
		if sel == "" {
			return nil, nil, nil
		}
		ov, err := parseOverride(sel, record, index)
		return nil, ov, err
	}

	var cents int64
	if s := pick(record, index, "price_cents"); s != "" {
		var err error
		if cents, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, nil, fmt.Errorf("price_cents %q: %w", s, err)
		}
	}
	options, err := ParseOptions(pick(record, index, "options"))
	if err != nil {
		return nil, nil, err
	}
	return &csvRow{
		ID:       pick(record, index, "id"),
		Key:      key,
		Name:     pick(record, index, "name"),
		Desc:     pick(record, index, "description"),
		Cents:    cents,
		Currency: strings.ToUpper(pick(record, index, "currency")),
		Options:  options,
	}, nil, nil
}

func parseOverride(sel string, record []string, index map[string]int) (*override, error) {
	ov := &override{Selection: map[string]string{}}
	for _, part := range strings.Split(sel, ";") {
		name, label, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("variant selection %q: want Option=value", part)
		}
		ov.Selection[strings.TrimSpace(name)] = strings.TrimSpace(label)
	}
	if s := pick(record, index, "variant_price_cents"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("variant_price_cents %q: %w", s, err)
		}
		ov.PriceCents = &v
	}
	if s := pick(record, index, "variant_stock"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("variant_stock %q: %w", s, err)
		}
		ov.Stock = &v
	}
	if s := pick(record, index, "variant_active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("variant_active %q: %w", s, err)
		}
		ov.Active = &v
	}
	return ov, nil
}

// ParseOptions reads "Weight:1kg|6kg;Flavor:chicken|fish". Empty input means no options.
func ParseOptions(s string) ([]domain.ProductOption, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []domain.ProductOption
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ";") {
		name, values, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("option %q: want Name:value|value", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("option %q listed twice", name)
		}
		seen[name] = true
		opt := domain.ProductOption{Name: name}
		for _, v := range strings.Split(values, "|") {
			if v = strings.TrimSpace(v); v != "" {
				opt.Values = append(opt.Values, domain.OptionValue{Label: v})
			}
		}
		if len(opt.Values) == 0 {
			return nil, fmt.Errorf("option %q has no values", name)
		}
		out = append(out, opt)
	}
	return out, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

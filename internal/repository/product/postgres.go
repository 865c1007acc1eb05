package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"petapt/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const productColumns = `id::text, key, name, description, base_price_cents, currency, created_at`

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: list rows error=%v", err)
		return nil, err
	}
	r.logger.Printf("product repo: list count=%d", len(result))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *postgresRepo) GetByKey(ctx context.Context, key string) (*domain.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE key = $1`, key)
}

func (r *postgresRepo) get(ctx context.Context, q, arg string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: get %s not found", arg)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get %s error=%v", arg, err)
		return nil, err
	}
	if p.Options, err = loadOptions(ctx, r.pool, p.ID); err != nil {
		return nil, err
	}
	if p.Variants, err = loadVariants(ctx, r.pool, p.ID); err != nil {
		return nil, err
	}
	r.logger.Printf("product repo: get id=%s key=%s options=%d variants=%d", p.ID, p.Key, len(p.Options), len(p.Variants))
	return p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, key, name, description, base_price_cents, currency)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
ON CONFLICT (key) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    base_price_cents = EXCLUDED.base_price_cents,
    currency = EXCLUDED.currency
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.Key,
		product.Name,
		product.Description,
		product.BasePriceCents,
		product.Currency,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Printf("product repo: upsert key=%s error=%v", product.Key, err)
		return nil, err
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s existing_id=%s import_id=%s", product.Key, res.ID, product.ID)
	}
	r.logger.Printf("product repo: upserted key=%s id=%s", res.Key, res.ID)
	return &res, nil
}

func (r *postgresRepo) SetOptions(ctx context.Context, productID string, options []domain.ProductOption) ([]domain.ProductOption, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	names := make([]string, 0, len(options))
	out := make([]domain.ProductOption, 0, len(options))
	for pos, opt := range options {
		names = append(names, opt.Name)
		saved := domain.ProductOption{Name: opt.Name}
		err := tx.QueryRow(ctx, `
INSERT INTO product_options (product_id, name, position)
VALUES ($1, $2, $3)
ON CONFLICT (product_id, name) DO UPDATE SET position = EXCLUDED.position
RETURNING id::text
`, productID, opt.Name, pos).Scan(&saved.ID)
		if err != nil {
			r.logger.Printf("product repo: set option product_id=%s name=%s error=%v", productID, opt.Name, err)
			return nil, err
		}

		labels := make([]string, 0, len(opt.Values))
		for vpos, v := range opt.Values {
			labels = append(labels, v.Label)
			val := domain.OptionValue{Label: v.Label}
			err := tx.QueryRow(ctx, `
INSERT INTO option_values (option_id, label, position)
VALUES ($1, $2, $3)
ON CONFLICT (option_id, label) DO UPDATE SET position = EXCLUDED.position
RETURNING id::text
`, saved.ID, v.Label, vpos).Scan(&val.ID)
			if err != nil {
				return nil, err
			}
			saved.Values = append(saved.Values, val)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM option_values WHERE option_id = $1 AND NOT (label = ANY($2))`, saved.ID, labels); err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_options WHERE product_id = $1 AND NOT (name = ANY($2))`, productID, names); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("product repo: set options product_id=%s count=%d", productID, len(out))
	return out, nil
}

func (r *postgresRepo) ReplaceVariants(ctx context.Context, productID string, variants []domain.Variant) ([]domain.Variant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	keys := make([]string, 0, len(variants))
	out := make([]domain.Variant, 0, len(variants))
	for _, v := range variants {
		key := v.Key.String()
		keys = append(keys, key)
		v.ProductID = productID
		err := tx.QueryRow(ctx, `
INSERT INTO variants (product_id, composite_key, selections, sku, price_cents, stock, active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (product_id, composite_key) DO UPDATE SET
    selections = EXCLUDED.selections,
    sku = EXCLUDED.sku,
    price_cents = EXCLUDED.price_cents,
    stock = EXCLUDED.stock,
    active = EXCLUDED.active
RETURNING id::text
`, productID, key, v.Key, v.SKU, v.PriceCents, v.Stock, v.Active).Scan(&v.ID)
		if err != nil {
			r.logger.Printf("product repo: upsert variant product_id=%s key=%s error=%v", productID, key, err)
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE product_id = $1 AND NOT (composite_key = ANY($2))`, productID, keys); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("product repo: replaced variants product_id=%s count=%d", productID, len(out))
	return out, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.BasePriceCents, &p.Currency, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func loadOptions(ctx context.Context, pool *pgxpool.Pool, productID string) ([]domain.ProductOption, error) {
	rows, err := pool.Query(ctx, `
SELECT o.id::text, o.name, v.id::text, v.label
FROM product_options o
LEFT JOIN option_values v ON v.option_id = o.id
WHERE o.product_id = $1
ORDER BY o.position ASC, v.position ASC
`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []domain.ProductOption
	for rows.Next() {
		var optID, name string
		var valID, label *string
		if err := rows.Scan(&optID, &name, &valID, &label); err != nil {
			return nil, err
		}
		if n := len(options); n == 0 || options[n-1].ID != optID {
			options = append(options, domain.ProductOption{ID: optID, Name: name})
		}
		if valID != nil {
			last := &options[len(options)-1]
			last.Values = append(last.Values, domain.OptionValue{ID: *valID, Label: *label})
		}
	}
	return options, rows.Err()
}

func loadVariants(ctx context.Context, pool *pgxpool.Pool, productID string) ([]domain.Variant, error) {
	rows, err := pool.Query(ctx, `
SELECT id::text, product_id::text, selections, sku, price_cents, stock, active
FROM variants
WHERE product_id = $1
ORDER BY composite_key ASC
`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Key, &v.SKU, &v.PriceCents, &v.Stock, &v.Active); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

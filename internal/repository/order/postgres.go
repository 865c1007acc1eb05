package order

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const orderColumns = `id::text, number, owner, status, payment_status, payment_method, placement_state,
       shipping_address_id::text, billing_address_id::text, subtotal_cents, total_cents, currency, created_at`

func (r *postgresRepo) Create(ctx context.Context, h domain.Order) (string, error) {
	var id string
	var createdAt any
	if !h.CreatedAt.IsZero() {
		createdAt = h.CreatedAt
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO orders (number, owner, status, payment_status, payment_method, placement_state,
                    shipping_address_id, billing_address_id, subtotal_cents, total_cents, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12::timestamptz, now()))
RETURNING id::text
`, h.Number, h.Owner, h.Status, h.PaymentStatus, h.PaymentMethod, h.PlacementState,
		h.ShippingAddressID, h.BillingAddressID, h.SubtotalCents, h.TotalCents, h.Currency, createdAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: create number=%s owner=%s error=%v", h.Number, h.Owner, err)
		return "", err
	}
	r.logger.Printf("order repo: created id=%s number=%s", id, h.Number)
	return id, nil
}

func (r *postgresRepo) AddLine(ctx context.Context, orderID string, l domain.OrderLine) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
INSERT INTO order_lines (order_id, product_id, variant_id, name, sku, unit_price_cents, quantity, total_price_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text
`, orderID, l.ProductID, l.VariantID, l.Name, l.SKU, l.UnitPriceCents, l.Quantity, l.TotalPriceCents).Scan(&id)
	if err != nil {
		r.logger.Printf("order repo: add line order_id=%s product_id=%s error=%v", orderID, l.ProductID, err)
		return "", err
	}
	return id, nil
}

func (r *postgresRepo) MarkComplete(ctx context.Context, orderID string) error {
	return r.setColumn(ctx, orderID, `UPDATE orders SET placement_state = $2 WHERE id = $1`, domain.PlacementComplete)
}

func (r *postgresRepo) Void(ctx context.Context, orderID string) error {
	return r.setColumn(ctx, orderID, `UPDATE orders SET status = $2 WHERE id = $1`, domain.OrderStatusVoid)
}

func (r *postgresRepo) setColumn(ctx context.Context, orderID, q string, value any) error {
	cmd, err := r.pool.Exec(ctx, q, orderID, value)
	if err != nil {
		r.logger.Printf("order repo: update id=%s error=%v", orderID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT id::text, order_id::text, product_id::text, variant_id, name, sku, unit_price_cents, quantity, total_price_cents
FROM order_lines
WHERE order_id = $1
ORDER BY created_at ASC, id ASC
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.VariantID, &l.Name, &l.SKU, &l.UnitPriceCents, &l.Quantity, &l.TotalPriceCents); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *postgresRepo) ListByOwner(ctx context.Context, owner string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner = $1 ORDER BY created_at DESC`, owner)
}

func (r *postgresRepo) ListIncomplete(ctx context.Context, olderThan time.Time) ([]domain.Order, error) {
	return r.list(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE placement_state = 'incomplete' AND status <> 'void' AND created_at < $1
ORDER BY created_at ASC
`, olderThan)
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("order repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.Number, &o.Owner, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PlacementState,
		&o.ShippingAddressID, &o.BillingAddressID, &o.SubtotalCents, &o.TotalCents, &o.Currency, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

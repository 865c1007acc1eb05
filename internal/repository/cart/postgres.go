package cart

import (
	"context"
	"errors"
	"io"
	"log"

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

func (r *postgresRepo) List(ctx context.Context, owner string) ([]domain.CartLine, error) {
	const q = `
SELECT cl.id::text, cl.owner, cl.product_id::text, cl.variant_id, cl.quantity, cl.revision, cl.created_at,
       p.name, p.key, p.currency, p.base_price_cents, v.sku, v.price_cents
FROM cart_lines cl
JOIN products p ON p.id = cl.product_id
LEFT JOIN variants v ON v.id::text = cl.variant_id AND v.product_id = cl.product_id
WHERE cl.owner = $1
ORDER BY cl.created_at ASC, cl.id ASC
`
	rows, err := r.pool.Query(ctx, q, owner)
	if err != nil {
		r.logger.Printf("cart repo: list owner=%s error=%v", owner, err)
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var (
			l   domain.CartLine
			sku *string
		)
		if err := rows.Scan(
			&l.ID, &l.Owner, &l.ProductID, &l.VariantID, &l.Quantity, &l.Revision, &l.CreatedAt,
			&l.Display.ProductName, &l.Display.ProductKey, &l.Display.Currency, &l.Display.BasePriceCents,
			&sku, &l.Display.VariantPriceCents,
		); err != nil {
			return nil, err
		}
		if sku != nil {
			l.Display.SKU = *sku
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("cart repo: list rows owner=%s error=%v", owner, err)
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) UpsertLine(ctx context.Context, owner, productID, variantID string, delta int, expectedRevision int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		lineID   string
		quantity int
		revision int64
	)
	err = tx.QueryRow(ctx, `
SELECT id::text, quantity, revision
FROM cart_lines
WHERE owner = $1 AND product_id = $2 AND variant_id = $3
FOR UPDATE
`, owner, productID, variantID).Scan(&lineID, &quantity, &revision)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return mapErr(err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		if expectedRevision > 0 {
			return domain.ErrRevisionConflict
		}
		if delta <= 0 {
			return domain.ErrInvalidQuantity
		}
		if err := r.insertLine(ctx, tx, owner, productID, variantID, delta, expectedRevision); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := checkRevision(expectedRevision, revision); err != nil {
		r.logger.Printf("cart repo: upsert conflict owner=%s line_id=%s expected=%d actual=%d", owner, lineID, expectedRevision, revision)
		return err
	}
	if next := quantity + delta; next <= 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID); err != nil {
			return err
		}
	} else if _, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1, revision = revision + 1, updated_at = now()
WHERE id = $2
`, next, lineID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// insertLine adds a new line. A concurrent insert for the same key is folded in additively
// unless the caller required the line to be absent.
func (r *postgresRepo) insertLine(ctx context.Context, tx pgx.Tx, owner, productID, variantID string, quantity int, expectedRevision int64) error {
	if variantID != "" {
		var exists bool
		if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM variants WHERE id::text = $1 AND product_id = $2)
`, variantID, productID).Scan(&exists); err != nil {
			return mapErr(err)
		}
		if !exists {
			return domain.ErrNotFound
		}
	}

	q := `
INSERT INTO cart_lines (owner, product_id, variant_id, quantity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner, product_id, variant_id) DO UPDATE
SET quantity = cart_lines.quantity + EXCLUDED.quantity, revision = cart_lines.revision + 1, updated_at = now()
`
	if expectedRevision == 0 {
		q = `
INSERT INTO cart_lines (owner, product_id, variant_id, quantity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner, product_id, variant_id) DO NOTHING
`
	}
	cmd, err := tx.Exec(ctx, q, owner, productID, variantID, quantity)
	if err != nil {
		r.logger.Printf("cart repo: insert owner=%s product_id=%s variant_id=%s error=%v", owner, productID, variantID, err)
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRevisionConflict
	}
	return nil
}

func (r *postgresRepo) SetLineQuantity(ctx context.Context, owner, lineID string, quantity int, expectedRevision int64) error {
	if _, err := uuid.Parse(lineID); err != nil {
		if quantity <= 0 {
			return nil
		}
		return domain.ErrNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var revision int64
	err = tx.QueryRow(ctx, `
SELECT revision FROM cart_lines WHERE id = $1 AND owner = $2 FOR UPDATE
`, lineID, owner).Scan(&revision)
	if errors.Is(err, pgx.ErrNoRows) {
		if quantity <= 0 {
			return nil
		}
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := checkRevision(expectedRevision, revision); err != nil {
		r.logger.Printf("cart repo: set quantity conflict owner=%s line_id=%s expected=%d actual=%d", owner, lineID, expectedRevision, revision)
		return err
	}

	if quantity <= 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID); err != nil {
			return err
		}
	} else if _, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1, revision = revision + 1, updated_at = now()
WHERE id = $2
`, quantity, lineID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) RemoveLine(ctx context.Context, owner, lineID string) error {
	if _, err := uuid.Parse(lineID); err != nil {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND owner = $2`, lineID, owner); err != nil {
		r.logger.Printf("cart repo: remove owner=%s line_id=%s error=%v", owner, lineID, err)
		return err
	}
	return nil
}

func (r *postgresRepo) Clear(ctx context.Context, owner string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE owner = $1`, owner)
	if err != nil {
		r.logger.Printf("cart repo: clear owner=%s error=%v", owner, err)
		return err
	}
	r.logger.Printf("cart repo: cleared owner=%s lines=%d", owner, cmd.RowsAffected())
	return nil
}

func (r *postgresRepo) MergeAnonymous(ctx context.Context, owner, anonymousOwner, attemptID string) (MergeResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return MergeResult{}, err
	}
	defer tx.Rollback(ctx)

	// A concurrent attempt with the same id blocks here until the first one commits.
	cmd, err := tx.Exec(ctx, `
INSERT INTO merge_attempts (attempt_id, owner, anonymous_owner)
VALUES ($1, $2, $3)
ON CONFLICT (attempt_id) DO NOTHING
`, attemptID, owner, anonymousOwner)
	if err != nil {
		return MergeResult{}, err
	}
	if cmd.RowsAffected() == 0 {
		r.logger.Printf("cart repo: merge attempt_id=%s already applied", attemptID)
		return MergeResult{AlreadyApplied: true}, nil
	}

	cmd, err = tx.Exec(ctx, `
INSERT INTO cart_lines (owner, product_id, variant_id, quantity)
SELECT $1, product_id, variant_id, quantity
FROM cart_lines
WHERE owner = $2
ORDER BY created_at ASC
ON CONFLICT (owner, product_id, variant_id) DO UPDATE
SET quantity = cart_lines.quantity + EXCLUDED.quantity, revision = cart_lines.revision + 1, updated_at = now()
`, owner, anonymousOwner)
	if err != nil {
		return MergeResult{}, err
	}
	merged := int(cmd.RowsAffected())

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE owner = $1`, anonymousOwner); err != nil {
		return MergeResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE merge_attempts SET lines_merged = $1 WHERE attempt_id = $2`, merged, attemptID); err != nil {
		return MergeResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return MergeResult{}, err
	}
	r.logger.Printf("cart repo: merged owner=%s from=%s attempt_id=%s lines=%d", owner, anonymousOwner, attemptID, merged)
	return MergeResult{LinesMerged: merged}, nil
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "22P02":
			return domain.ErrNotFound
		case "23505":
			return domain.ErrAlreadyExists
		}
	}
	return err
}

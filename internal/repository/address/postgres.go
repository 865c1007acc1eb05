package address

import (
	"context"
	"errors"
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

const addressColumns = `id::text, owner, first_name, last_name, street, city, postal_code, country, phone, is_default, created_at`

func (r *postgresRepo) List(ctx context.Context, owner string) ([]domain.Address, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+addressColumns+` FROM addresses WHERE owner = $1 ORDER BY created_at ASC`, owner)
	if err != nil {
		r.logger.Printf("address repo: list owner=%s error=%v", owner, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Get(ctx context.Context, owner, id string) (*domain.Address, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	a, err := scanAddress(r.pool.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND owner = $2`, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *postgresRepo) Create(ctx context.Context, owner string, a domain.Address) (*domain.Address, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent creates for the same owner so only one becomes the first default.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, owner); err != nil {
		return nil, err
	}
	var existing int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE owner = $1`, owner).Scan(&existing); err != nil {
		return nil, err
	}
	makeDefault := a.IsDefault || existing == 0
	if makeDefault {
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = FALSE WHERE owner = $1 AND is_default`, owner); err != nil {
			return nil, err
		}
	}

	created, err := scanAddress(tx.QueryRow(ctx, `
INSERT INTO addresses (owner, first_name, last_name, street, city, postal_code, country, phone, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+addressColumns,
		owner, a.FirstName, a.LastName, a.Street, a.City, a.PostalCode, a.Country, a.Phone, makeDefault,
	))
	if err != nil {
		r.logger.Printf("address repo: create owner=%s error=%v", owner, err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *postgresRepo) SetDefault(ctx context.Context, owner, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	// The EXISTS guard keeps the current default when id does not belong to owner.
	cmd, err := r.pool.Exec(ctx, `
UPDATE addresses
SET is_default = (id = $2)
WHERE owner = $1
  AND EXISTS (SELECT 1 FROM addresses WHERE id = $2 AND owner = $1)
`, owner, id)
	if err != nil {
		r.logger.Printf("address repo: set default owner=%s id=%s error=%v", owner, id, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	if err := row.Scan(&a.ID, &a.Owner, &a.FirstName, &a.LastName, &a.Street, &a.City, &a.PostalCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

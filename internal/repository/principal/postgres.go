package principal

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
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

func (r *postgresRepo) CreateAnonymous(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		token := strings.ReplaceAll(uuid.NewString(), "-", "")
		_, err := r.pool.Exec(ctx, `INSERT INTO anonymous_principals (token) VALUES ($1)`, token)
		if err == nil {
			return token, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		r.logger.Printf("principal repo: create anonymous error=%v", err)
		return "", err
	}
	return "", errors.New("principal repo: could not allocate a unique token")
}

package principal

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"petapt/internal/migrate"
)

func TestPostgres_CreateAnonymousUnique(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()
	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		token, err := repo.CreateAnonymous(ctx)
		if err != nil {
			t.Fatalf("CreateAnonymous: %v", err)
		}
		if len(token) != 32 || seen[token] {
			t.Fatalf("unexpected token %q", token)
		}
		seen[token] = true
	}
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM anonymous_principals`).Scan(&n); err != nil || n < 10 {
		t.Fatalf("expected stored principals, got %d err=%v", n, err)
	}
}

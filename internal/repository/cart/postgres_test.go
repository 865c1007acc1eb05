package cart

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"petapt/internal/domain"
	"petapt/internal/migrate"
)

func TestPostgres_UpsertListAndMerge(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	var productID, variantID string
	if err := pool.QueryRow(ctx, `
INSERT INTO products (key, name, base_price_cents, currency) VALUES ('dry-food', 'Dry food', 500, 'EUR')
RETURNING id::text`).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if err := pool.QueryRow(ctx, `
INSERT INTO variants (product_id, composite_key, sku, price_cents, stock) VALUES ($1, 'w=1kg', 'DRY_FOOD-1KG', 450, 10)
RETURNING id::text`, productID).Scan(&variantID); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	repo := NewPostgres(pool, nil)
	if err := repo.UpsertLine(ctx, "anon:t", productID, variantID, 1, AnyRevision); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpsertLine(ctx, "anon:t", productID, variantID, 2, AnyRevision); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	lines, err := repo.List(ctx, "anon:t")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 3 || lines[0].Revision != 2 {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if got := domain.NewCartSnapshot(lines).SubtotalCents; got != 1350 {
		t.Fatalf("expected subtotal 1350, got %d", got)
	}
	if lines[0].Display.SKU != "DRY_FOOD-1KG" {
		t.Fatalf("display not joined: %+v", lines[0].Display)
	}

	if err := repo.SetLineQuantity(ctx, "anon:t", lines[0].ID, 9, 1); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}
	if err := repo.UpsertLine(ctx, "anon:t", productID, "", 1, 0); err != nil {
		t.Fatalf("insert base product line: %v", err)
	}

	res, err := repo.MergeAnonymous(ctx, "user:1", "anon:t", "attempt-1")
	if err != nil || res.LinesMerged != 2 {
		t.Fatalf("merge: %+v err=%v", res, err)
	}
	res, err = repo.MergeAnonymous(ctx, "user:1", "anon:t", "attempt-1")
	if err != nil || !res.AlreadyApplied {
		t.Fatalf("replay: %+v err=%v", res, err)
	}
	merged, _ := repo.List(ctx, "user:1")
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged lines, got %+v", merged)
	}

	if err := repo.RemoveLine(ctx, "user:1", merged[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.RemoveLine(ctx, "user:1", merged[0].ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if err := repo.Clear(ctx, "user:1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if left, _ := repo.List(ctx, "user:1"); len(left) != 0 {
		t.Fatalf("cart not cleared: %+v", left)
	}
}

func TestPostgres_ConcurrentUpsertsSerialize(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	var productID string
	if err := pool.QueryRow(ctx, `
INSERT INTO products (key, name, base_price_cents) VALUES ('treats', 'Treats', 200) RETURNING id::text`).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	repo := NewPostgres(pool, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.UpsertLine(ctx, "user:1", productID, "", 1, AnyRevision); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}()
	}
	wg.Wait()

	lines, _ := repo.List(ctx, "user:1")
	if len(lines) != 1 || lines[0].Quantity != 8 {
		t.Fatalf("expected quantity 8, got %+v", lines)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE order_lines, orders, addresses, merge_attempts, cart_lines, variants, option_values, product_options, products RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

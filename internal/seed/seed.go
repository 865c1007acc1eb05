package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"petapt/internal/domain"
	"petapt/internal/importer"
	addressrepo "petapt/internal/repository/address"
	customerrepo "petapt/internal/repository/customer"
	productrepo "petapt/internal/repository/product"
	"petapt/internal/service/catalog"
	"petapt/internal/service/customer"
)

const (
	DemoEmail    = "demo@petapt.local"
	DemoPassword = "Demo1234"
)

const demoCatalog = `key,name,description,price_cents,currency,options,variant,variant_price_cents,variant_stock,variant_active
dry-food-adult,Adult dry food,Complete food for adult cats,450,EUR,Weight:1kg|6kg;Flavor:chicken|fish,,,,
,,,,,,Weight=1kg;Flavor=chicken,,40,
,,,,,,Weight=1kg;Flavor=fish,,25,
,,,,,,Weight=6kg;Flavor=chicken,2100,12,
,,,,,,Weight=6kg;Flavor=fish,2200,0,
wet-food-pouch,Wet food pouch,Pouch in gravy,120,EUR,Flavor:salmon|turkey|beef,,,,
,,,,,,Flavor=salmon,,100,
,,,,,,Flavor=turkey,,80,
,,,,,,Flavor=beef,,0,false
scratching-post,Scratching post,Sisal post 60cm,1990,EUR,Color:grey|beige,,,,
,,,,,,Color=grey,,5,
,,,,,,Color=beige,,3,
`

// Apply inserts demo data for manual testing. Re-running it keeps existing ids.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger) error {
	products := productrepo.NewPostgres(pool, logger)
	n, err := importer.NewCSVImporter(strings.NewReader(demoCatalog), products, catalog.New(products, logger)).Run(ctx)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	customers := customer.New(customerrepo.NewPostgres(pool, logger))
	c, err := customers.Signup(ctx, customer.SignupInput{Email: DemoEmail, Password: DemoPassword, FirstName: "Demo", LastName: "Shopper"})
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		if c, err = customers.Login(ctx, DemoEmail, DemoPassword); err != nil {
			return fmt.Errorf("seed customer: %w", err)
		}
	case err != nil:
		return fmt.Errorf("seed customer: %w", err)
	}

	addresses := addressrepo.NewPostgres(pool, logger)
	owner := domain.Authenticated(c.ID).OwnerKey()
	existing, err := addresses.List(ctx, owner)
	if err != nil {
		return fmt.Errorf("seed address: %w", err)
	}
	if len(existing) == 0 {
		if _, err := addresses.Create(ctx, owner, domain.Address{
			FirstName: "Demo", LastName: "Shopper", Street: "Brivibas iela 1", City: "Riga", PostalCode: "LV-1010", Country: "LV",
		}); err != nil {
			return fmt.Errorf("seed address: %w", err)
		}
	}
	if logger != nil {
		logger.Printf("seed: products=%d customer=%s", n, c.Email)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"petapt/internal/config"
	"petapt/internal/db"
	"petapt/internal/importer"
	"petapt/internal/repository/product"
	"petapt/internal/service/catalog"
)

func main() {
	var (
		filePath string
		verbose  bool
	)
	flag.StringVar(&filePath, "file", "", "Path to product CSV with option sets")
	flag.BoolVar(&verbose, "v", false, "Log repository activity")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	var logger *log.Logger
	if verbose {
		logger = log.New(os.Stderr, "[importer] ", log.LstdFlags|log.LUTC)
	}
	repo := product.NewPostgres(pool, logger)
	imp := importer.NewCSVImporter(f, repo, catalog.New(repo, logger))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}

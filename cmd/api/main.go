package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"petapt/internal/checkout"
	"petapt/internal/config"
	"petapt/internal/db"
	"petapt/internal/fulfillment"
	"petapt/internal/httpserver"
	"petapt/internal/reconcile"
	addressrepo "petapt/internal/repository/address"
	cartrepo "petapt/internal/repository/cart"
	customerrepo "petapt/internal/repository/customer"
	orderrepo "petapt/internal/repository/order"
	principalrepo "petapt/internal/repository/principal"
	productrepo "petapt/internal/repository/product"
	addresssvc "petapt/internal/service/address"
	catalogsvc "petapt/internal/service/catalog"
	customersvc "petapt/internal/service/customer"
	"petapt/internal/session"
	"petapt/internal/sessionstore"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	if cfg.UsesDevSessionSecret() {
		logger.Printf("WARNING: SESSION_SECRET not set, session tokens are signed with the public development secret")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	var store sessionstore.Store
	if cfg.RedisAddr != "" {
		rdb, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("connect to redis: %v", err)
		}
		defer rdb.Close()
		store = sessionstore.NewRedis(rdb, cfg.SessionTTL)
	} else {
		logger.Printf("REDIS_ADDR not set, sessions are kept in memory")
		store = sessionstore.NewMemory()
	}

	var publisher checkout.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := fulfillment.NewKafka(cfg.KafkaBrokers, cfg.FulfillmentTopic, logger)
		defer kp.Close()
		publisher = kp
	} else {
		logger.Printf("KAFKA_BROKERS not set, order events are not published")
		publisher = fulfillment.Nop{Logger: logger}
	}

	policy, err := reconcile.ParsePolicy(cfg.ReconcilePolicy)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	addressRepo := addressrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	principalRepo := principalrepo.NewPostgres(dbpool, logger)

	registry := session.NewRegistry(session.Deps{
		Store:       store,
		Provisioner: principalRepo,
		Carts:       cartRepo,
		Addresses:   addressRepo,
		Catalog:     productRepo,
		Orders:      orderRepo,
		Publisher:   publisher,
		Logger:      logger,
	})

	reconciler := reconcile.New(orderRepo, reconcile.Options{
		Interval: cfg.ReconcileInterval,
		After:    cfg.ReconcileAfter,
		Policy:   policy,
	}, logger)
	go reconciler.Run(ctx)
	go registry.RunSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionTTL)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:    registry,
		Tokens:      httpserver.NewSessionTokens(cfg.SessionSecret, cfg.SessionTTL),
		Customers:   customersvc.New(customerRepo),
		Addresses:   addresssvc.New(addressRepo),
		Catalog:     catalogsvc.New(productRepo, logger),
		Orders:      orderRepo,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

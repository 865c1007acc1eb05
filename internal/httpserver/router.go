package httpserver

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"petapt/internal/domain"
	"petapt/internal/session"
	"petapt/internal/variant"
)

type SessionRegistry interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
}

type CustomerService interface {
	Login(ctx context.Context, email, password string) (*domain.Customer, error)
}

type AddressService interface {
	List(ctx context.Context, id domain.Identity) ([]domain.Address, error)
	Create(ctx context.Context, id domain.Identity, a domain.Address) (*domain.Address, error)
	SetDefault(ctx context.Context, id domain.Identity, addressID string) error
}

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	RegenerateVariants(ctx context.Context, productID string) (*domain.Product, error)
	ResolveVariant(ctx context.Context, productID string, selection map[string]string) (*domain.Variant, error)
	Availability(ctx context.Context, productID string, selection map[string]string) ([]variant.ValueAvailability, error)
}

type OrderReader interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Order, error)
}

type Deps struct {
	Sessions    SessionRegistry
	Tokens      *SessionTokens
	Customers   CustomerService
	Addresses   AddressService
	Catalog     CatalogService
	Orders      OrderReader
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Tokens == nil {
		return nil, errors.New("httpserver: sessions and tokens are required")
	}
	if deps.Customers == nil || deps.Addresses == nil || deps.Catalog == nil || deps.Orders == nil {
		return nil, errors.New("httpserver: customer, address, catalog and order services are required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", sessionHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{deps: deps, logger: logger}
	router.POST("/sessions", h.createSession)

	router.GET("/products", h.listProducts)
	router.GET("/products/:productId", h.getProduct)
	router.GET("/products/:productId/variants/resolve", h.resolveVariant)
	router.GET("/products/:productId/availability", h.availability)

	authed := router.Group("/", sessionMiddleware(deps.Tokens, deps.Sessions))
	authed.GET("/session", h.getSession)
	authed.POST("/session/login", h.login)

	authed.GET("/cart", h.getCart)
	authed.POST("/cart/lines", h.addLine)
	authed.PATCH("/cart/lines/:lineId", h.updateLine)
	authed.DELETE("/cart/lines/:lineId", h.removeLine)
	authed.DELETE("/cart", h.clearCart)

	authed.GET("/addresses", h.listAddresses)
	authed.POST("/addresses", h.createAddress)
	authed.PUT("/addresses/:addressId/default", h.setDefaultAddress)

	authed.POST("/checkout/challenge", h.setChallenge)
	authed.POST("/orders", h.placeOrder)
	authed.GET("/orders", h.listOrders)
	authed.GET("/orders/:orderId", h.getOrder)

	authed.POST("/products/:productId/variants/regenerate", h.regenerateVariants)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}

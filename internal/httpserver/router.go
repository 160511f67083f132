package httpserver

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	sessioncart "shopcart/internal/cart"
	"shopcart/internal/domain"
	"shopcart/internal/metrics"
	"shopcart/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type productService interface {
	List(ctx context.Context, categorySlug string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type categoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
}

type cartService interface {
	Add(ctx context.Context, sess sessioncart.Session, productID string, quantity int, override bool) (sessioncart.Summary, error)
	Update(ctx context.Context, sess sessioncart.Session, productID string, quantity int) (sessioncart.Summary, error)
	Remove(ctx context.Context, sess sessioncart.Session, productID string) (sessioncart.Summary, error)
	Detail(ctx context.Context, sess sessioncart.Session) (sessioncart.Summary, error)
	Clear(ctx context.Context, sess sessioncart.Session) error
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Deps lists the services the router needs.
type Deps struct {
	Sessions    session.Store
	CartSvc     cartService
	ProductSvc  productService
	CategorySvc categoryService
	Metrics     *metrics.Metrics
	Cookie      CookieConfig
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.CartSvc == nil || deps.ProductSvc == nil || deps.CategorySvc == nil {
		return nil, errors.New("httpserver: missing service dependencies")
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "sessionid"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	catalog := &catalogHandlers{products: deps.ProductSvc, categories: deps.CategorySvc, logger: logger}
	router.GET("/categories", catalog.listCategories)
	router.GET("/products", catalog.listProducts)
	router.GET("/products/:id", catalog.getProduct)

	carts := &cartHandlers{
		svc:      deps.CartSvc,
		sessions: deps.Sessions,
		cookie:   deps.Cookie,
		metrics:  deps.Metrics,
		logger:   logger,
	}
	cart := router.Group("/cart", sessionMiddleware(deps.Sessions, deps.Cookie.Name, logger))
	cart.GET("", carts.detail)
	cart.DELETE("", carts.clear)
	cart.POST("/items/:productID", carts.add)
	cart.PUT("/items/:productID", carts.update)
	cart.DELETE("/items/:productID", carts.remove)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		// Browsers refuse credentials with a wildcard origin.
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shopcart/internal/config"
	"shopcart/internal/db"
	"shopcart/internal/httpserver"
	"shopcart/internal/metrics"
	categoryrepo "shopcart/internal/repository/category"
	productrepo "shopcart/internal/repository/product"
	cartsvc "shopcart/internal/service/cart"
	categorysvc "shopcart/internal/service/category"
	productsvc "shopcart/internal/service/product"
	"shopcart/internal/session"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	var sessions session.Store
	switch cfg.SessionStore {
	case "memory":
		mem := session.NewMemoryStore(cfg.SessionTTL, cfg.SessionSweepEvery)
		defer mem.Close()
		sessions = mem
	case "postgres":
		pg := session.NewPostgresStore(dbpool, cfg.SessionTTL, logger)
		go pg.PurgeLoop(ctx, cfg.SessionSweepEvery)
		sessions = pg
	default:
		logger.Fatalf("unknown SESSION_STORE %q", cfg.SessionStore)
	}
	logger.Printf("session store: %s ttl=%s", cfg.SessionStore, cfg.SessionTTL)

	m := metrics.NewWithRuntime()
	productRepo := productrepo.NewPostgres(dbpool, logger)
	productService := productsvc.New(productRepo)
	categoryRepo := categoryrepo.NewPostgres(dbpool)
	categoryService := categorysvc.New(categoryRepo)
	cartService := cartsvc.New(productRepo, logger, m)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:    sessions,
		CartSvc:     cartService,
		ProductSvc:  productService,
		CategorySvc: categoryService,
		Metrics:     m,
		Cookie: httpserver.CookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
			TTL:    cfg.SessionTTL,
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
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

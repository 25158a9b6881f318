package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avdeevlv/livin-market/internal/auth"
	"github.com/avdeevlv/livin-market/internal/catalog"
	"github.com/avdeevlv/livin-market/internal/config"
	"github.com/avdeevlv/livin-market/internal/ledger"
	"github.com/avdeevlv/livin-market/pkg/accesslog"
	"github.com/avdeevlv/livin-market/pkg/limiter"
	"github.com/avdeevlv/livin-market/pkg/logger"
	"github.com/avdeevlv/livin-market/pkg/unzip"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nanmu42/gzip"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

const baseURL = "/api/v1"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

	// Check connectivity and DSN correctness.
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	// Init repository for auth service.
	authRepo, err := auth.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init auth repository: %w", err)
	}

	// Init auth service.
	authService, err := auth.NewService(authRepo, trManager, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}

	// Init repository for ledger service.
	ledgerRepo, err := ledger.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init ledger repository: %w", err)
	}

	// Init ledger service.
	ledgerService, err := ledger.NewService(ledgerRepo, trManager, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init ledger service: %w", err)
	}

	// Init repository for catalog service.
	catalogRepo, err := catalog.NewRepository(db, logger)
	if err != nil {
		return fmt.Errorf("failed to init catalog repository: %w", err)
	}

	// Init catalog service.
	catalogService, err := catalog.NewService(catalogRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to init catalog service: %w", err)
	}

	// Create root router.
	router := initRootRouter(logger)

	// Init and group handlers for auth routes.
	auth.HandlerWithOptions(authService, auth.ChiServerOptions{
		BaseURL:          baseURL,
		BaseRouter:       router,
		Middlewares:      []auth.MiddlewareFunc{authService.Middleware},
		ErrorHandlerFunc: auth.ErrorHandlerFunc,
	})

	// Mutations share one rate limiter.
	rateLimiter := limiter.NewDynamicRateLimiter(cfg.RateLimit.Interval, cfg.RateLimit.Burst)

	// Init handlers for ledger routes.
	ledger.HandlerWithOptions(ledgerService, ledger.ChiServerOptions{
		BaseURL:             baseURL,
		BaseRouter:          router,
		Middlewares:         []ledger.MiddlewareFunc{authService.Middleware},
		MutationMiddlewares: []ledger.MiddlewareFunc{limiter.Middleware(rateLimiter)},
		ErrorHandlerFunc:    ledger.ErrorHandlerFunc,
	})

	// Init handlers for public catalog routes.
	catalog.HandlerWithOptions(catalogService, catalog.ChiServerOptions{
		BaseURL:          baseURL,
		BaseRouter:       router,
		ErrorHandlerFunc: catalog.ErrorHandlerFunc,
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		if err = hs.Shutdown(serverCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"

	"breakupguide/internal/catalog"
	"breakupguide/internal/checkout"
	"breakupguide/internal/config"
	"breakupguide/internal/database"
	"breakupguide/internal/handlers"
	"breakupguide/internal/library"
	"breakupguide/internal/logging"
	"breakupguide/internal/payment"
	"breakupguide/internal/progression"
	"breakupguide/internal/repository"
	"breakupguide/internal/security"
	"breakupguide/internal/service"
	"breakupguide/internal/store"
	"breakupguide/internal/web"
)

const (
	sessionIdleTTL       = 2 * time.Hour
	sweepInterval        = 10 * time.Minute
	sessionCleanupPeriod = time.Hour
	loginAttempts        = 10
	loginWindow          = time.Minute
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "error", err)
	}

	logger := logging.New(os.Stderr, cfg.Server.LogLevel)
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("database connection established", "type", cfg.Database.Type)

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	cat, err := loadCatalog(cfg.Funnel.CatalogDir)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "chapters", len(cat.Chapters()), "books", len(cat.Books()), "freebies", len(cat.Freebies()))

	mode, err := progression.ParseSelectionMode(cfg.Funnel.SelectionMode)
	if err != nil {
		return err
	}

	templates, err := web.Templates()
	if err != nil {
		return err
	}

	var rdb goredis.UniversalClient
	// Redis carries visitor state and fans library updates out across replicas
	if cfg.State.Backend == "redis" {
		rdb, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	backend, err := stateBackend(cfg, db, rdb)
	if err != nil {
		return err
	}
	logger.Info("visitor state backend ready", "backend", cfg.State.Backend)

	// Library
	var libStore library.Store
	switch cfg.Funnel.LibraryStore {
	case "", "sql":
		libStore = library.NewSQLStore(db)
	case "local":
		libStore = library.NewLocalStore(backend, logger)
	default:
		return fmt.Errorf("unknown library store %q", cfg.Funnel.LibraryStore)
	}

	var bus library.Bus
	if rdb != nil && cfg.Redis.LibraryChannel != "" {
		redisBus := library.NewRedisBus(rdb, cfg.Redis.LibraryChannel, logger)
		if err := redisBus.Start(ctx); err != nil {
			return fmt.Errorf("failed to subscribe to library channel: %w", err)
		}
		bus = redisBus
	} else {
		bus = library.NewMemoryBus(logger)
	}
	libraryService := library.NewService(libStore, bus, logger)

	// Services
	emailService, err := service.NewEmailService(ctx, cfg.Email.Region, cfg.Email.FromAddress, "Breakup Guide", cfg.Server.BaseURL, logger)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(repository.NewUserRepository(db), emailService, cfg.Session.Duration.Duration, logger)

	processors, err := payment.FromConfig(cfg.Payment)
	if err != nil {
		return err
	}
	logger.Info("payment providers configured", "providers", processors.Names())

	checkoutService := checkout.NewService(
		repository.NewOrderRepository(db),
		processors,
		checkout.NewRecorder(libraryService),
		checkout.Options{
			BundlePriceCents: cfg.Funnel.BundlePriceCents,
			Currency:         cfg.Funnel.Currency,
			BaseURL:          cfg.Server.BaseURL,
			Logger:           logger,
			Receipts:         emailService,
		},
	)

	// Security
	csrf := security.NewCSRFGenerator(secretOrRandom(cfg.Session.CSRFSecret, "csrf_secret", logger))
	visitors := security.NewVisitorSigner(secretOrRandom(cfg.Session.VisitorSecret, "visitor_secret", logger), cfg.Session.VisitorDuration.Duration)
	limiter := security.NewRateLimiter(loginAttempts, loginWindow)

	registry := progression.NewRegistry(sessionIdleTTL)

	site := handlers.NewSite(templates, backend, csrf, logger)
	handler := handlers.NewRouter(handlers.Router{
		Middleware: handlers.NewMiddleware(authService, visitors, csrf, limiter, logger),
		Funnel: handlers.NewFunnelHandler(site, cat, registry, handlers.FunnelOptions{
			Mode:             mode,
			BundlePriceCents: cfg.Funnel.BundlePriceCents,
			Currency:         cfg.Funnel.Currency,
			SupportEmail:     cfg.Email.FromAddress,
			IntroVideoURL:    cfg.Funnel.IntroVideoURL,
		}, logger),
		Checkout: handlers.NewCheckoutHandler(site, cat, checkoutService, logger),
		Library:  handlers.NewLibraryHandler(site, libraryService, logger),
		Auth:     handlers.NewAuthHandler(site, authService, handlers.OAuthProviders(cfg.OAuth), cfg.Server.BaseURL, logger),
		Admin:    handlers.NewAdminHandler(site, service.NewBackupService(db, logger), repository.NewOrderRepository(db), logger),
		Logging:  handlers.Logging(logging.Component(logger, "http")),
	})

	// Background maintenance
	go registry.Run(ctx, sweepInterval)
	go limiter.Run(ctx, sweepInterval)
	go authService.RunSessionCleanup(ctx, sessionCleanupPeriod)

	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default()
	}
	return catalog.LoadDir(dir)
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (goredis.UniversalClient, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func stateBackend(cfg *config.Config, db *database.DB, rdb goredis.UniversalClient) (store.Backend, error) {
	switch cfg.State.Backend {
	case "", "sql":
		return store.NewSQLBackend(repository.NewStateRepository(db)), nil
	case "redis":
		return store.NewRedisBackend(rdb, cfg.Session.VisitorDuration.Duration), nil
	case "memory":
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// secretOrRandom returns secret, or a random one when it is unset. Random
// secrets do not survive a restart, so visitors lose their state.
func secretOrRandom(secret, name string, logger *log.Logger) string {
	if secret != "" {
		return secret
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Fatal("failed to generate secret", "name", name, "error", err)
	}
	logger.Warn("no secret configured, using a random one", "name", name)
	return hex.EncodeToString(b)
}

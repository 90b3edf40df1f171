package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fsanano/foodshare/internal/config"
	"fsanano/foodshare/internal/handler"
	"fsanano/foodshare/internal/logging"
	"fsanano/foodshare/internal/metrics"
	"fsanano/foodshare/internal/repository"
	"fsanano/foodshare/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup store
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}

	// 3. Setup Logic
	m := metrics.New()
	accountService := service.NewAccountService(store, cfg.MatchWindow, m)
	listingService := service.NewListingService(store, cfg.MatchWindow, m)

	h := handler.NewHandler(
		handler.NewAccountHandler(accountService, log),
		handler.NewListingHandler(listingService, log),
		store,
		m,
		log,
		handler.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,

			TrustProxyHeaders: cfg.TrustProxyHeaders,
		},
	)

	// 4. Setup Server
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 5. Run Server with Graceful Shutdown
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"port": cfg.ServerPort, "store": cfg.StoreDriver}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		// Create a deadline to wait for.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return store.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
	log.Info("Server exiting")
}

func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		store, err := repository.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		log.WithField("database", cfg.Mongo.Database).Info("Connected to mongo")
		return store, nil

	case config.DriverMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	if cfg.MigrateOnStart {
		if err := repository.NewMigrator(cfg.DatabaseURL).Up(ctx); err != nil {
			return nil, err
		}
		log.Info("Migrations applied")
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, err
	}
	log.Info("Connected to database")
	return repository.NewPostgresStore(dbPool), nil
}

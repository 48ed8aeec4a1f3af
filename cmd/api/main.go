// Package main provides the entry point for the API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/narvanalabs/envkeep/internal/api"
	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/secrets"
	"github.com/narvanalabs/envkeep/internal/service"
	"github.com/narvanalabs/envkeep/internal/shutdown"
	"github.com/narvanalabs/envkeep/internal/store"
	"github.com/narvanalabs/envkeep/internal/store/memstore"
	pgstore "github.com/narvanalabs/envkeep/internal/store/postgres"
	"github.com/narvanalabs/envkeep/pkg/config"
	"github.com/narvanalabs/envkeep/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := cfg.Logger()

	// Secret values cannot be read without the key, so refuse to start without it.
	codec, err := secrets.LoadCodec(cfg.KeySource())
	if err != nil {
		log.Error("failed to load encryption key", "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(&auth.Config{
		JWTSecret:         []byte(cfg.JWTSecret),
		TokenExpiry:       cfg.JWTExpiry,
		AuthorizedEmails:  cfg.AuthorizedEmails,
		AuthorizedDomains: cfg.AuthorizedDomains,
	}, log.WithComponent("auth").Logger)

	svc := service.New(st, codec, service.Options{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}, log.Logger)

	server := api.NewServer(cfg, svc, authService, log.WithComponent("api").Logger)

	// The server drains before the store closes.
	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.WithComponent("shutdown").Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	if err := server.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		exitCode = 1
	}
	stop()

	if err := coordinator.Shutdown(context.Background()); err != nil {
		log.Error("shutdown incomplete", "error", err)
		exitCode = 1
	}

	log.Info("server stopped")
	os.Exit(exitCode)
}

func openStore(cfg *config.Config, log *logger.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}
	return pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.WithComponent("store").Logger)
}

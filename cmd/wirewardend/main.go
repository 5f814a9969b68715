package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wirewarden/wirewarden/internal/api"
	"github.com/wirewarden/wirewarden/internal/config"
	"github.com/wirewarden/wirewarden/internal/database"
	"github.com/wirewarden/wirewarden/internal/store"
	"github.com/wirewarden/wirewarden/internal/topology"
	"github.com/wirewarden/wirewarden/internal/vault"
)

func main() {
	logger, _ := zap.NewProduction()
	if os.Getenv("WIREWARDEN_ENVIRONMENT") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("starting wirewardend")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("failed to load configuration: %v", err)
	}
	sugar.Infof("loaded configuration for environment: %s", cfg.Environment)

	db, err := database.New(cfg.Database)
	if err != nil {
		sugar.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	sugar.Info("connected to database")

	if err := db.Migrate(); err != nil {
		sugar.Fatalf("failed to run migrations: %v", err)
	}
	sugar.Info("database migrations completed")

	sealKey, err := cfg.Vault.SealKey()
	if err != nil {
		sugar.Fatalf("failed to load seal key: %v", err)
	}
	v, err := vault.New(sealKey)
	if err != nil {
		sugar.Fatalf("failed to initialize key vault: %v", err)
	}

	st := store.New(db.Pool, v)
	resolver := topology.New(st)

	server := api.NewServer(cfg, db, st, resolver, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Fatalf("server forced to shutdown: %v", err)
	}

	sugar.Info("server exited properly")
}

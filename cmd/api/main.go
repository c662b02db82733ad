// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookhive/internal/accounts"
	"bookhive/internal/auth"
	"bookhive/internal/catalog"
	"bookhive/internal/config"
	"bookhive/internal/eventlog"
	"bookhive/internal/lending"
	"bookhive/internal/server"
	"bookhive/internal/store"
	"bookhive/internal/telemetry"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	shutdown, err := telemetry.Setup(ctx, "bookhive-api")
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdown(context.Background())

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	ledger := lending.NewService(db, eventlog.New(db))
	handler := server.New(server.Deps{
		Issuer:   issuer,
		Accounts: accounts.NewHandler(accounts.NewService(db), issuer),
		Catalog:  catalog.NewHandler(catalog.NewService(db, ledger), ledger),
		Lending:  lending.NewHandler(ledger),
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		fmt.Printf("🚀 Starting BookHive API on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

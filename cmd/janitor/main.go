package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/krishanu7/rps-backend/config"
	"github.com/krishanu7/rps-backend/internal/match"
	"github.com/krishanu7/rps-backend/internal/retention"
	"github.com/krishanu7/rps-backend/internal/storage"
)

// janitor runs the retention sweep as its own process, for deployments where
// several servers share one postgres or redis store.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Store == config.StoreMemory {
		log.Fatal("Janitor needs a shared store; set STORE to postgres or redis")
	}
	if cfg.MatchRetention == 0 {
		log.Fatal("MATCH_RETENTION is 0, nothing to sweep")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	service := match.NewService(store, match.Options{})
	sweeper := retention.NewSweeper(service, nil, cfg.MatchRetention, cfg.SweepInterval)

	log.Println("Janitor service starting...")
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start sweeper: %v", err)
	}

	<-ctx.Done()
	log.Println("Janitor shutting down")
	if err := sweeper.Stop(); err != nil {
		log.Printf("Failed to stop sweeper: %v", err)
	}
}

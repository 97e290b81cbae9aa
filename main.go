// Command rps-backend runs the rock-paper-scissors match server: REST
// endpoints to create, join and play a match, and a websocket stream that
// pushes every state change to both players.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/krishanu7/rps-backend/config"
	"github.com/krishanu7/rps-backend/db"
	"github.com/krishanu7/rps-backend/internal/auth"
	"github.com/krishanu7/rps-backend/internal/match"
	"github.com/krishanu7/rps-backend/internal/retention"
	"github.com/krishanu7/rps-backend/internal/storage"
	"github.com/krishanu7/rps-backend/internal/ws"
	wsPkg "github.com/krishanu7/rps-backend/pkg/websocket"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := &cli.Command{
		Name:  "rps-backend",
		Usage: "rock-paper-scissors match server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides ADDR)"},
			&cli.StringFlag{Name: "store", Usage: "match store: memory, postgres or redis (overrides STORE)"},
			&cli.BoolFlag{Name: "debug", Usage: "log file and line numbers"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the postgres schema",
				Action: migrate,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Command) (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("store") {
		cfg.Store = c.String("store")
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
	return cfg, cfg.Validate()
}

func migrate(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.DBUrl == "" {
		return errors.New("DB_URL is required for migrate")
	}
	conn, err := db.Open(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer conn.Close()
	return db.Migrate(ctx, conn)
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	service := match.NewService(store, match.Options{
		MovePolicy:     match.MovePolicy(cfg.MovePolicy),
		CloseOnResolve: cfg.CloseOnResolve,
	})

	hub := wsPkg.NewHub(service)
	broadcaster := ws.NewBroadcaster(hub, service, cfg.BroadcastWorkers)
	service.SetNotifier(broadcaster)
	broadcaster.Start()

	var issuer *auth.Issuer
	if cfg.JWTSecret != "" {
		issuer = auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	} else {
		log.Println("JWT_SECRET not set, player tokens are disabled")
	}

	var sweeper *retention.Sweeper
	if cfg.MatchRetention > 0 {
		sweeper = retention.NewSweeper(service, hub, cfg.MatchRetention, cfg.SweepInterval)
		if err := sweeper.Start(); err != nil {
			return err
		}
	}

	router := mux.NewRouter()
	match.NewHandler(service, issuer).RegisterRoutes(router)
	ws.NewHandler(hub, broadcaster, issuer).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server started at %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			log.Printf("Sweeper shutdown error: %v", err)
		}
	}
	broadcaster.Stop()
	hub.Shutdown()
	return nil
}

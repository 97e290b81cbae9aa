package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/krishanu7/rps-backend/config"
	"github.com/krishanu7/rps-backend/db"
	"github.com/krishanu7/rps-backend/internal/match"
	rdbPkg "github.com/krishanu7/rps-backend/pkg/redis"
)

// Open returns the match store selected by cfg.Store together with a
// function that releases its connections.
func Open(ctx context.Context, cfg config.Config) (match.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Println("Using in-memory match store")
		return match.NewMemoryStore(), func() error { return nil }, nil

	case config.StorePostgres:
		conn, err := db.Open(ctx, cfg.DBUrl)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		log.Println("Using postgres match store")
		return match.NewPostgresStore(conn), conn.Close, nil

	case config.StoreRedis:
		rdb, err := rdbPkg.NewRedisClient(ctx, rdbPkg.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Println("Using redis match store")
		// Keys outlive the retention window slightly so the sweeper still
		// finds them and can drop their connections.
		ttl := cfg.MatchRetention
		if ttl > 0 {
			ttl += cfg.SweepInterval
		}
		return match.NewRedisStore(rdb, ttl), rdb.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

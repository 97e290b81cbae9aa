package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr  string
	Store string
	DBUrl string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	TokenTTL  time.Duration

	MovePolicy     string
	CloseOnResolve bool

	MatchRetention   time.Duration
	SweepInterval    time.Duration
	BroadcastWorkers int

	Debug bool
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

func LoadConfig() (Config, error) {
	err := godotenv.Load()

	if err != nil {
		log.Println("No .env file found. Using environment variables.")
	}

	cfg := Config{
		Addr:          getenv("ADDR", ":8080"),
		Store:         strings.ToLower(getenv("STORE", StoreMemory)),
		DBUrl:         os.Getenv("DB_URL"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		MovePolicy:    strings.ToLower(getenv("MOVE_POLICY", "overwrite")),
	}

	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.CloseOnResolve, err = boolEnv("CLOSE_ON_RESOLVE", false); err != nil {
		return Config{}, err
	}
	if cfg.MatchRetention, err = durationEnv("MATCH_RETENTION", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.BroadcastWorkers, err = intEnv("BROADCAST_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = boolEnv("DEBUG", false); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used to start the server.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.DBUrl == "" {
			return fmt.Errorf("DB_URL is required when STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE %q (want memory, postgres or redis)", c.Store)
	}
	if c.MovePolicy != "overwrite" && c.MovePolicy != "reject" {
		return fmt.Errorf("unknown MOVE_POLICY %q (want overwrite or reject)", c.MovePolicy)
	}
	if c.MatchRetention < 0 {
		return fmt.Errorf("MATCH_RETENTION must not be negative")
	}
	if c.MatchRetention > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive when MATCH_RETENTION is set")
	}
	if c.BroadcastWorkers < 1 {
		return fmt.Errorf("BROADCAST_WORKERS must be at least 1")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

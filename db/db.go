package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the matches table. Player B columns stay NULL until a
// second participant joins.
const Schema = `
CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY,
	player_a_id    TEXT NOT NULL UNIQUE,
	player_a_name  TEXT NOT NULL,
	player_a_ready BOOLEAN NOT NULL DEFAULT FALSE,
	player_a_move  TEXT CHECK (player_a_move IN ('rock', 'paper', 'scissors')),
	player_b_id    TEXT UNIQUE,
	player_b_name  TEXT,
	player_b_ready BOOLEAN NOT NULL DEFAULT FALSE,
	player_b_move  TEXT CHECK (player_b_move IN ('rock', 'paper', 'scissors')),
	winner         TEXT,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS matches_updated_at_idx ON matches (updated_at);
`

// Open connects to Postgres and checks the connection before returning.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return conn, nil
}

func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Println("Database schema is up to date")
	return nil
}

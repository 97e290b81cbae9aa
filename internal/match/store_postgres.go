package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/krishanu7/rps-backend/internal/game"
	"github.com/lib/pq"
)

const matchColumns = `id, player_a_id, player_a_name, player_a_ready, player_a_move,
	player_b_id, player_b_name, player_b_ready, player_b_move,
	winner, is_active, created_at, updated_at`

// PostgresStore keeps matches in the matches table. Every update runs in its
// own transaction holding the row lock of that match only.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*Match, error) {
	var (
		m                    Match
		aMove, bMove, winner sql.NullString
		bID, bName           sql.NullString
		bReady               bool
	)
	err := row.Scan(&m.ID, &m.PlayerA.ID, &m.PlayerA.Name, &m.PlayerA.Ready, &aMove,
		&bID, &bName, &bReady, &bMove,
		&winner, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.PlayerA.Move = moveFromNull(aMove)
	if bID.Valid {
		m.PlayerB = &Player{
			ID:    bID.String,
			Name:  bName.String,
			Ready: bReady,
			Move:  moveFromNull(bMove),
		}
	}
	if winner.Valid {
		w := winner.String
		m.Winner = &w
	}
	return &m, nil
}

func moveFromNull(ns sql.NullString) *game.Move {
	if !ns.Valid {
		return nil
	}
	mv := game.Move(ns.String)
	return &mv
}

func nullMove(mv *game.Move) sql.NullString {
	if mv == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*mv), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *PostgresStore) Create(ctx context.Context, m *Match) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, player_a_id, player_a_name, player_a_ready, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.PlayerA.ID, m.PlayerA.Name, m.PlayerA.Ready, m.IsActive, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: match %s already exists", ErrConflict, m.ID)
		}
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Match, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = $1", id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*Match) error) (*Match, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op once the transaction has been committed.
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = $1 FOR UPDATE", id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock match %s: %w", id, err)
	}

	if err := fn(m); err != nil {
		return nil, err
	}

	var bID, bName sql.NullString
	var bReady bool
	var bMove sql.NullString
	if m.PlayerB != nil {
		bID = sql.NullString{String: m.PlayerB.ID, Valid: true}
		bName = sql.NullString{String: m.PlayerB.Name, Valid: true}
		bReady = m.PlayerB.Ready
		bMove = nullMove(m.PlayerB.Move)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE matches SET
			player_a_name = $2, player_a_ready = $3, player_a_move = $4,
			player_b_id = $5, player_b_name = $6, player_b_ready = $7, player_b_move = $8,
			winner = $9, is_active = $10, updated_at = $11
		 WHERE id = $1`,
		m.ID, m.PlayerA.Name, m.PlayerA.Ready, nullMove(m.PlayerA.Move),
		bID, bName, bReady, bMove,
		nullString(m.Winner), m.IsActive, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update match %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "DELETE FROM matches WHERE updated_at < $1 RETURNING id", before)
	if err != nil {
		return nil, fmt.Errorf("failed to delete idle matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

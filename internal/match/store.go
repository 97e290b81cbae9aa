package match

import (
	"context"
	"time"
)

// Store owns Match records. Update is the only way to mutate a stored match:
// fn receives a private copy and the result is persisted only if fn and the
// commit both succeed, so concurrent updates to one match never interleave.
type Store interface {
	Create(ctx context.Context, m *Match) error
	Get(ctx context.Context, id string) (*Match, error)
	Update(ctx context.Context, id string, fn func(*Match) error) (*Match, error)
	// DeleteIdle removes every match last updated before the cutoff and
	// returns the removed ids. A match updated concurrently is kept.
	DeleteIdle(ctx context.Context, before time.Time) ([]string, error)
}

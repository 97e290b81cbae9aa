package match

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/krishanu7/rps-backend/db"
	"github.com/krishanu7/rps-backend/internal/game"
	"github.com/redis/go-redis/v9"
)

func newTestMatch(updated time.Time) *Match {
	return &Match{
		ID:        uuid.NewString(),
		PlayerA:   Player{ID: uuid.NewString(), Name: "Alice"},
		IsActive:  true,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

// runStoreTests exercises the Store contract shared by every backend.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		m := newTestMatch(now)
		if err := s.Create(ctx, m); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		got, err := s.Get(ctx, m.ID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.PlayerA.ID != m.PlayerA.ID || got.PlayerA.Name != "Alice" || got.PlayerB != nil || !got.IsActive {
			t.Errorf("Unexpected match: %+v", got)
		}
		if err := s.Create(ctx, m); !errors.Is(err, ErrConflict) {
			t.Errorf("Expected ErrConflict on duplicate id, got %v", err)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if _, err := s.Update(ctx, uuid.NewString(), func(*Match) error { return nil }); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound from Update, got %v", err)
		}
	})

	t.Run("update round trips every field", func(t *testing.T) {
		s := newStore(t)
		m := newTestMatch(now)
		s.Create(ctx, m)

		rock, scissors := game.Rock, game.Scissors
		winner := m.PlayerA.ID
		_, err := s.Update(ctx, m.ID, func(m *Match) error {
			m.PlayerA.Ready = true
			m.PlayerA.Move = &rock
			m.PlayerB = &Player{ID: "b-" + m.ID, Name: "Bob", Ready: true, Move: &scissors}
			m.Winner = &winner
			m.UpdatedAt = now.Add(time.Second)
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error: %v", err)
		}

		got, _ := s.Get(ctx, m.ID)
		if got.PlayerB == nil || got.PlayerB.Name != "Bob" || *got.PlayerB.Move != game.Scissors {
			t.Errorf("Player B not stored: %+v", got.PlayerB)
		}
		if !got.PlayerA.Ready || *got.PlayerA.Move != game.Rock {
			t.Errorf("Player A not stored: %+v", got.PlayerA)
		}
		if got.Winner == nil || *got.Winner != winner {
			t.Errorf("Winner not stored: %v", got.Winner)
		}
	})

	t.Run("failed update persists nothing", func(t *testing.T) {
		s := newStore(t)
		m := newTestMatch(now)
		s.Create(ctx, m)

		boom := errors.New("boom")
		_, err := s.Update(ctx, m.ID, func(m *Match) error {
			m.PlayerA.Ready = true
			m.IsActive = false
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected fn error, got %v", err)
		}
		got, _ := s.Get(ctx, m.ID)
		if got.PlayerA.Ready || !got.IsActive {
			t.Errorf("Partial update leaked: %+v", got)
		}
	})

	t.Run("concurrent updates do not lose writes", func(t *testing.T) {
		s := newStore(t)
		m := newTestMatch(now)
		s.Create(ctx, m)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, m.ID, func(m *Match) error {
					m.PlayerA.Name += "!"
					return nil
				})
				if err != nil {
					t.Errorf("Update() error: %v", err)
				}
			}()
		}
		wg.Wait()

		got, _ := s.Get(ctx, m.ID)
		if got.PlayerA.Name != "Alice!!!!!" {
			t.Errorf("Expected 5 appended marks, got %q", got.PlayerA.Name)
		}
	})

	t.Run("delete idle", func(t *testing.T) {
		s := newStore(t)
		old := newTestMatch(now.Add(-time.Hour))
		fresh := newTestMatch(now)
		s.Create(ctx, old)
		s.Create(ctx, fresh)

		ids, err := s.DeleteIdle(ctx, now.Add(-30*time.Minute))
		if err != nil {
			t.Fatalf("DeleteIdle() error: %v", err)
		}
		if len(ids) != 1 || ids[0] != old.ID {
			t.Errorf("Expected only %s removed, got %v", old.ID, ids)
		}
		if _, err := s.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected idle match gone, got %v", err)
		}
		if _, err := s.Get(ctx, fresh.ID); err != nil {
			t.Errorf("Fresh match removed: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := newTestMatch(time.Now())
	s.Create(ctx, m)

	got, _ := s.Get(ctx, m.ID)
	got.PlayerA.Name = "Mallory"

	again, _ := s.Get(ctx, m.ID)
	if again.PlayerA.Name != "Alice" {
		t.Errorf("Caller mutation leaked into the store: %s", again.PlayerA.Name)
	}
}

func TestRedisStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return NewRedisStore(rdb, time.Hour)
	})
}

func TestRedisStoreExpiredKeyIsStillSwept(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, time.Minute)
	ctx := context.Background()

	m := newTestMatch(time.Now().Add(-time.Hour))
	if err := s.Create(ctx, m); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := s.Get(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected key to expire, got %v", err)
	}
	ids, err := s.DeleteIdle(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteIdle() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != m.ID {
		t.Errorf("Expected expired id to be reported, got %v", ids)
	}
	if mr.Exists(redisIdleIndex) {
		members, _ := mr.ZMembers(redisIdleIndex)
		t.Errorf("Idle index still holds %v", members)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	runStoreTests(t, func(t *testing.T) Store {
		cleanMatches(t, conn)
		return NewPostgresStore(conn)
	})
}

func cleanMatches(t *testing.T, conn *sql.DB) {
	t.Helper()
	if _, err := conn.Exec("DELETE FROM matches"); err != nil {
		t.Fatalf("Failed to clean matches: %v", err)
	}
}

package match

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krishanu7/rps-backend/internal/game"
)

type MovePolicy string

const (
	// MoveOverwrite lets a player change a submitted move. The winner is
	// still fixed by the first pair of moves.
	MoveOverwrite MovePolicy = "overwrite"
	// MoveReject refuses a second move from the same player.
	MoveReject MovePolicy = "reject"
)

const maxNameLength = 64

// Notifier is told about every committed state change of a match.
type Notifier interface {
	Notify(matchID string)
}

type Options struct {
	MovePolicy     MovePolicy
	CloseOnResolve bool
}

// Service is the only writer of match records.
type Service struct {
	store    Store
	notifier Notifier
	opts     Options
	now      func() time.Time
}

type CreateResult struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
}

type JoinResult struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
}

func NewService(store Store, opts Options) *Service {
	if opts.MovePolicy == "" {
		opts.MovePolicy = MoveOverwrite
	}
	return &Service{
		store: store,
		opts:  opts,
		now:   time.Now,
	}
}

// SetNotifier wires the broadcaster after construction, since the
// broadcaster itself reads snapshots through this service.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) notify(matchID string) {
	if s.notifier != nil {
		s.notifier.Notify(matchID)
	}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: player name is required", ErrValidation)
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("%w: player name must be at most %d bytes", ErrValidation, maxNameLength)
	}
	return name, nil
}

func (s *Service) CreateMatch(ctx context.Context, playerName string) (*CreateResult, error) {
	name, err := cleanName(playerName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &Match{
		ID: uuid.NewString(),
		PlayerA: Player{
			ID:   uuid.NewString(),
			Name: name,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}

	log.Printf("Match %s created by player %s (%s)", m.ID, m.PlayerA.ID, name)
	return &CreateResult{MatchID: m.ID, PlayerID: m.PlayerA.ID, Role: RoleA}, nil
}

func (s *Service) JoinMatch(ctx context.Context, matchID, playerName string) (*JoinResult, error) {
	name, err := cleanName(playerName)
	if err != nil {
		return nil, err
	}

	playerID := uuid.NewString()
	_, err = s.store.Update(ctx, matchID, func(m *Match) error {
		if !m.IsActive {
			return fmt.Errorf("%w: match %s is no longer active", ErrConflict, matchID)
		}
		if m.PlayerB != nil {
			return fmt.Errorf("%w: match %s is full", ErrConflict, matchID)
		}
		m.PlayerB = &Player{ID: playerID, Name: name}
		m.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Player %s (%s) joined match %s", playerID, name, matchID)
	s.notify(matchID)
	return &JoinResult{MatchID: matchID, PlayerID: playerID, Role: RoleB}, nil
}

// mutate applies fn to the caller's seat of an active match.
func (s *Service) mutate(ctx context.Context, matchID, playerID string, fn func(m *Match, p *Player) error) (*Match, error) {
	return s.store.Update(ctx, matchID, func(m *Match) error {
		p := m.seat(playerID)
		if p == nil {
			return fmt.Errorf("%w: player %s is not in match %s", ErrForbidden, playerID, matchID)
		}
		if !m.IsActive {
			return fmt.Errorf("%w: match %s is no longer active", ErrConflict, matchID)
		}
		return fn(m, p)
	})
}

func (s *Service) SetReady(ctx context.Context, matchID, playerID string) (Snapshot, error) {
	changed := false
	m, err := s.mutate(ctx, matchID, playerID, func(m *Match, p *Player) error {
		if p.Ready {
			return nil
		}
		p.Ready = true
		m.UpdatedAt = s.now()
		changed = true
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	if changed {
		log.Printf("Player %s is ready in match %s", playerID, matchID)
	}
	s.notify(matchID)
	return m.Snapshot(), nil
}

func (s *Service) SubmitMove(ctx context.Context, matchID, playerID, move string) (Snapshot, error) {
	// Unknown matches and outsiders are reported before a malformed move.
	mv, parseErr := game.ParseMove(move)

	resolved := false
	m, err := s.mutate(ctx, matchID, playerID, func(m *Match, p *Player) error {
		if parseErr != nil {
			return fmt.Errorf("%w: %v", ErrValidation, parseErr)
		}
		if p.Move != nil && s.opts.MovePolicy == MoveReject {
			return fmt.Errorf("%w: player %s already submitted a move", ErrConflict, playerID)
		}
		p.Move = &mv
		m.UpdatedAt = s.now()
		if m.resolve() {
			resolved = true
			if s.opts.CloseOnResolve {
				m.IsActive = false
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	log.Printf("Player %s played %s in match %s", playerID, mv, matchID)
	if resolved {
		log.Printf("Match %s resolved, winner: %s", matchID, *m.Winner)
	}
	s.notify(matchID)
	return m.Snapshot(), nil
}

func (s *Service) GetState(ctx context.Context, matchID string) (Snapshot, error) {
	m, err := s.store.Get(ctx, matchID)
	if err != nil {
		return Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// CloseMatch deactivates a match on request of one of its players. Closing
// an inactive match again returns its state unchanged.
func (s *Service) CloseMatch(ctx context.Context, matchID, playerID string) (Snapshot, error) {
	m, err := s.store.Update(ctx, matchID, func(m *Match) error {
		if !m.IsParticipant(playerID) {
			return fmt.Errorf("%w: player %s is not in match %s", ErrForbidden, playerID, matchID)
		}
		if m.IsActive {
			m.IsActive = false
			m.UpdatedAt = s.now()
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	log.Printf("Match %s closed by player %s", matchID, playerID)
	s.notify(matchID)
	return m.Snapshot(), nil
}

// AuthorizeSubscriber checks that playerID may stream updates of matchID.
func (s *Service) AuthorizeSubscriber(ctx context.Context, matchID, playerID string) error {
	m, err := s.store.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !m.IsParticipant(playerID) {
		return fmt.Errorf("%w: player %s is not in match %s", ErrForbidden, playerID, matchID)
	}
	if !m.IsActive {
		return fmt.Errorf("%w: match %s is no longer active", ErrConflict, matchID)
	}
	return nil
}

// ExpireIdle deletes every match not updated since before and returns the
// ids that are gone.
func (s *Service) ExpireIdle(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := s.store.DeleteIdle(ctx, before)
	if err != nil {
		return ids, fmt.Errorf("failed to expire idle matches: %w", err)
	}
	if len(ids) > 0 {
		log.Printf("Expired %d idle matches", len(ids))
	}
	return ids, nil
}

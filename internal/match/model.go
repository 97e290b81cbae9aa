package match

import (
	"time"

	"github.com/krishanu7/rps-backend/internal/game"
)

const (
	RoleA = "A"
	RoleB = "B"

	// WinnerDraw is stored in Match.Winner when both players chose the same move.
	WinnerDraw = "draw"
)

type Player struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Ready bool       `json:"ready"`
	Move  *game.Move `json:"move,omitempty"`
}

// Match is the stored record of one two-player game. PlayerB is nil until
// somebody joins, and Winner is nil until both moves are in.
type Match struct {
	ID        string    `json:"id"`
	PlayerA   Player    `json:"player_a"`
	PlayerB   *Player   `json:"player_b,omitempty"`
	Winner    *string   `json:"winner,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Match) Clone() *Match {
	c := *m
	c.PlayerA = clonePlayer(m.PlayerA)
	if m.PlayerB != nil {
		b := clonePlayer(*m.PlayerB)
		c.PlayerB = &b
	}
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	return &c
}

func clonePlayer(p Player) Player {
	if p.Move != nil {
		mv := *p.Move
		p.Move = &mv
	}
	return p
}

// seat returns the slot owned by playerID, or nil for outsiders.
func (m *Match) seat(playerID string) *Player {
	if playerID == "" {
		return nil
	}
	if m.PlayerA.ID == playerID {
		return &m.PlayerA
	}
	if m.PlayerB != nil && m.PlayerB.ID == playerID {
		return m.PlayerB
	}
	return nil
}

func (m *Match) IsParticipant(playerID string) bool {
	return m.seat(playerID) != nil
}

func (m *Match) Resolved() bool {
	return m.Winner != nil
}

// resolve fixes the winner the first time both moves are present.
func (m *Match) resolve() bool {
	if m.Winner != nil || m.PlayerB == nil || m.PlayerA.Move == nil || m.PlayerB.Move == nil {
		return false
	}
	var winner string
	switch game.Decide(*m.PlayerA.Move, *m.PlayerB.Move) {
	case game.AWins:
		winner = m.PlayerA.ID
	case game.BWins:
		winner = m.PlayerB.ID
	default:
		winner = WinnerDraw
	}
	m.Winner = &winner
	return true
}

type PlayerView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Ready bool       `json:"ready"`
	Move  *game.Move `json:"move,omitempty"`
}

type Players struct {
	A *PlayerView `json:"A"`
	B *PlayerView `json:"B"`
}

// Snapshot is the read-only projection sent to clients.
type Snapshot struct {
	MatchID  string  `json:"match_id"`
	Players  Players `json:"players"`
	Winner   *string `json:"winner"`
	IsActive bool    `json:"is_active"`
}

func (m *Match) Snapshot() Snapshot {
	c := m.Clone()
	s := Snapshot{
		MatchID:  c.ID,
		Winner:   c.Winner,
		IsActive: c.IsActive,
	}
	s.Players.A = viewOf(&c.PlayerA)
	if c.PlayerB != nil {
		s.Players.B = viewOf(c.PlayerB)
	}
	return s
}

func viewOf(p *Player) *PlayerView {
	return &PlayerView{ID: p.ID, Name: p.Name, Ready: p.Ready, Move: p.Move}
}

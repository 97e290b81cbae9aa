package game

import (
	"fmt"
	"strings"
)

type Move string

const (
	Rock     Move = "rock"
	Paper    Move = "paper"
	Scissors Move = "scissors"
)

// Moves lists every valid move.
var Moves = []Move{Rock, Paper, Scissors}

// beats maps each move to the move it defeats.
var beats = map[Move]Move{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

func (m Move) Valid() bool {
	_, ok := beats[m]
	return ok
}

// ParseMove accepts a move name in any case, surrounded by optional spaces.
func ParseMove(s string) (Move, error) {
	m := Move(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("invalid move %q: must be rock, paper or scissors", s)
	}
	return m, nil
}

type Outcome int

const (
	Draw Outcome = iota
	AWins
	BWins
)

func (o Outcome) String() string {
	switch o {
	case AWins:
		return "a_wins"
	case BWins:
		return "b_wins"
	default:
		return "draw"
	}
}

// Decide resolves one round between player A's and player B's move.
func Decide(a, b Move) Outcome {
	if a == b {
		return Draw
	}
	if beats[a] == b {
		return AWins
	}
	return BWins
}

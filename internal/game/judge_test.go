package game

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		a, b Move
		want Outcome
	}{
		{Rock, Rock, Draw},
		{Paper, Paper, Draw},
		{Scissors, Scissors, Draw},
		{Rock, Scissors, AWins},
		{Scissors, Paper, AWins},
		{Paper, Rock, AWins},
		{Scissors, Rock, BWins},
		{Paper, Scissors, BWins},
		{Rock, Paper, BWins},
	}

	for _, tt := range tests {
		t.Run(string(tt.a)+"_vs_"+string(tt.b), func(t *testing.T) {
			if got := Decide(tt.a, tt.b); got != tt.want {
				t.Errorf("Decide(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDecideIsAntisymmetric(t *testing.T) {
	for _, a := range Moves {
		for _, b := range Moves {
			ab, ba := Decide(a, b), Decide(b, a)
			switch ab {
			case Draw:
				if ba != Draw {
					t.Errorf("Decide(%s, %s) is a draw but reversed gives %s", a, b, ba)
				}
			case AWins:
				if ba != BWins {
					t.Errorf("Decide(%s, %s) = a_wins but reversed gives %s", a, b, ba)
				}
			case BWins:
				if ba != AWins {
					t.Errorf("Decide(%s, %s) = b_wins but reversed gives %s", a, b, ba)
				}
			}
		}
	}
}

func TestParseMove(t *testing.T) {
	valid := map[string]Move{
		"rock":     Rock,
		" Paper ":  Paper,
		"SCISSORS": Scissors,
	}
	for in, want := range valid {
		got, err := ParseMove(in)
		if err != nil {
			t.Errorf("ParseMove(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMove(%q) = %s, want %s", in, got, want)
		}
	}

	for _, in := range []string{"", "lizard", "scissor", "spock"} {
		if _, err := ParseMove(in); err == nil {
			t.Errorf("ParseMove(%q) expected error", in)
		}
	}
}

// Package numberguess implements the turn-based number guessing game: both
// players take turns guessing a hidden number and are told whether each guess
// was too low or too high.
package numberguess

import (
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
)

type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Feedback string

const (
	TooLow  Feedback = "too_low"
	TooHigh Feedback = "too_high"
	Correct Feedback = "correct"
)

type Config struct {
	MinRange int `json:"minRange"`
	MaxRange int `json:"maxRange"`
}

func DefaultConfig() Config {
	return Config{MinRange: 1, MaxRange: 100}
}

// RangeLimit bounds both ends of the range so the span always fits an int.
const RangeLimit = 1_000_000_000

func (c Config) validate() error {
	if c.MinRange < -RangeLimit || c.MaxRange > RangeLimit {
		return models.Validation("range must stay within ±%d", RangeLimit)
	}
	if c.MinRange >= c.MaxRange {
		return models.Validation("minRange must be lower than maxRange")
	}
	return nil
}

type Guess struct {
	PlayerID   string   `json:"playerId"`
	PlayerName string   `json:"playerName"`
	Number     int      `json:"number"`
	Feedback   Feedback `json:"feedback"`
	Timestamp  int64    `json:"timestamp"`
}

// State never serializes the target; use View to broadcast it.
type State struct {
	Players      game.Seats `json:"players"`
	Config       Config     `json:"config"`
	CurrentTurn  string     `json:"currentTurn"`
	Guesses      []Guess    `json:"guesses"`
	Winner       string     `json:"winner,omitempty"`
	Status       Status     `json:"status"`
	TargetNumber int        `json:"-"`
}

func (s *State) GameID() models.GameID { return models.GameNumberGuessing }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.Guesses = append([]Guess(nil), s.Guesses...)
	return &c
}

// View is the broadcast shape of a State. TargetNumber is only set when revealed.
type View struct {
	*State
	TargetNumber *int `json:"targetNumber,omitempty"`
}

func (s *State) View(reveal bool) View {
	v := View{State: s}
	if reveal {
		t := s.TargetNumber
		v.TargetNumber = &t
	}
	return v
}

// Initialize draws the target uniformly from the configured range. The first
// seat guesses first.
func Initialize(seats game.Seats, cfg Config, deps game.Deps) (*State, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	span := cfg.MaxRange - cfg.MinRange + 1
	return &State{
		Players:      seats,
		Config:       cfg,
		CurrentTurn:  seats[0].ID,
		Guesses:      []Guess{},
		Status:       StatusPlaying,
		TargetNumber: cfg.MinRange + deps.Random.Intn(span),
	}, nil
}

type GuessResult struct {
	Guess Guess `json:"guess"`
	game.Transition
}

// MakeGuess scores a guess from the player holding the turn. A wrong guess
// passes the turn; a correct one ends the game with the guesser as winner.
func MakeGuess(s *State, playerID string, number int, deps game.Deps) (*State, GuessResult, error) {
	if s.Status != StatusPlaying {
		return nil, GuessResult{}, models.ErrNotPlaying
	}
	if !s.Players.Has(playerID) {
		return nil, GuessResult{}, models.ErrNotParticipant
	}
	if s.CurrentTurn != playerID {
		return nil, GuessResult{}, models.ErrNotYourTurn
	}
	if number < s.Config.MinRange || number > s.Config.MaxRange {
		return nil, GuessResult{}, models.Validation("Guess must be between %d and %d", s.Config.MinRange, s.Config.MaxRange)
	}

	g := Guess{
		PlayerID:   playerID,
		PlayerName: s.Players.Name(playerID),
		Number:     number,
		Timestamp:  deps.NowMillis(),
	}
	switch {
	case number == s.TargetNumber:
		g.Feedback = Correct
	case number < s.TargetNumber:
		g.Feedback = TooLow
	default:
		g.Feedback = TooHigh
	}

	next := s.clone()
	next.Guesses = append(next.Guesses, g)
	res := GuessResult{Guess: g}
	if g.Feedback == Correct {
		next.Winner = playerID
		next.Status = StatusFinished
		res.GameOver = true
		res.MatchOver = true
		return next, res, nil
	}
	next.CurrentTurn = s.Players.Other(playerID)
	res.TurnAdvances = true
	return next, res, nil
}

type PlayerStats struct {
	PlayerID     string  `json:"playerId"`
	TotalGuesses int     `json:"totalGuesses"`
	Guesses      []Guess `json:"guesses"`
}

type Stats struct {
	TotalGuesses int           `json:"totalGuesses"`
	Players      []PlayerStats `json:"players"`
	Winner       string        `json:"winner,omitempty"`
}

func ComputeStats(s *State) Stats {
	st := Stats{TotalGuesses: len(s.Guesses), Winner: s.Winner}
	for _, seat := range s.Players {
		ps := PlayerStats{PlayerID: seat.ID, Guesses: []Guess{}}
		for _, g := range s.Guesses {
			if g.PlayerID == seat.ID {
				ps.Guesses = append(ps.Guesses, g)
			}
		}
		ps.TotalGuesses = len(ps.Guesses)
		st.Players = append(st.Players, ps)
	}
	return st
}

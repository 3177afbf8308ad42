// Package rps implements a best-of-N rock paper scissors match with an
// optional lizard/spock variant and power-ups.
package rps

import (
	"slices"
	"time"

	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusRoundOver Status = "round_over"
	StatusMatchOver Status = "match_over"
)

type Variant string

const (
	VariantClassic  Variant = "classic"
	VariantExtended Variant = "extended"
)

type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
	Lizard   Choice = "lizard"
	Spock    Choice = "spock"
)

const (
	PowerUpReveal       = "reveal"
	PowerUpShield       = "shield"
	PowerUpDoublePoints = "double_points"
)

// Seat labels used in scores and round winners.
const (
	Player1 = "Player1"
	Player2 = "Player2"
	Draw    = "draw"
)

var beats = map[Choice][]Choice{
	Rock:     {Scissors, Lizard},
	Paper:    {Rock, Spock},
	Scissors: {Paper, Lizard},
	Lizard:   {Paper, Spock},
	Spock:    {Rock, Scissors},
}

func (c Choice) valid(v Variant) bool {
	switch c {
	case Rock, Paper, Scissors:
		return true
	case Lizard, Spock:
		return v == VariantExtended
	}
	return false
}

type Config struct {
	Variant         Variant `json:"variant"`
	BestOf          int     `json:"bestOf"`
	TimeLimit       int     `json:"timeLimit"`
	PowerUpsEnabled bool    `json:"powerUpsEnabled"`
}

func DefaultConfig() Config {
	return Config{Variant: VariantClassic, BestOf: 3}
}

func (c Config) normalize() (Config, error) {
	if c.Variant == "" {
		c.Variant = VariantClassic
	}
	if c.BestOf == 0 {
		c.BestOf = 3
	}
	if c.Variant != VariantClassic && c.Variant != VariantExtended {
		return c, models.Validation("variant must be classic or extended")
	}
	if !game.ValidBestOf(c.BestOf) {
		return c, models.Validation("bestOf must be 1, 3, 5 or 7")
	}
	if c.TimeLimit < 0 || c.TimeLimit > 300 {
		return c, models.Validation("timeLimit must be between 0 and 300 seconds")
	}
	return c, nil
}

type Round struct {
	RoundNumber   int    `json:"roundNumber"`
	Player1Choice Choice `json:"player1Choice"`
	Player2Choice Choice `json:"player2Choice"`
	Winner        string `json:"winner"`
	DoublePoints  bool   `json:"doublePoints"`
	Duration      int64  `json:"duration"`
}

type MatchScore struct {
	Player1 int `json:"Player1"`
	Player2 int `json:"Player2"`
	Draws   int `json:"draws"`
}

type State struct {
	Players        game.Seats    `json:"players"`
	Config         Config        `json:"config"`
	CurrentRound   int           `json:"currentRound"`
	RoundResults   []Round       `json:"roundResults"`
	MatchScore     MatchScore    `json:"matchScore"`
	Player1Choice  *Choice       `json:"player1Choice"`
	Player2Choice  *Choice       `json:"player2Choice"`
	Submitted      [2]bool       `json:"submitted"`
	PowerUps       game.PowerUps `json:"powerUps"`
	ShieldActive   [2]bool       `json:"shieldActive"`
	RoundStartTime int64         `json:"roundStartTime"`
	Status         Status        `json:"status"`
	Winner         string        `json:"winner,omitempty"`
}

func (s *State) GameID() models.GameID { return models.GameRPS }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.RoundResults = append([]Round(nil), s.RoundResults...)
	c.PowerUps = s.PowerUps.Clone()
	return &c
}

// View hides submitted choices until the round is evaluated.
func (s *State) View() *State {
	if s.Status != StatusWaiting {
		return s
	}
	v := s.clone()
	v.Player1Choice = nil
	v.Player2Choice = nil
	return v
}

func (s *State) choiceOf(seat int) *Choice {
	if seat == 0 {
		return s.Player1Choice
	}
	return s.Player2Choice
}

func Initialize(seats game.Seats, cfg Config, deps game.Deps) (*State, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	st := &State{
		Players:        seats,
		Config:         cfg,
		CurrentRound:   1,
		RoundResults:   []Round{},
		PowerUps:       game.PowerUps{},
		RoundStartTime: deps.NowMillis(),
		Status:         StatusWaiting,
	}
	if cfg.PowerUpsEnabled {
		st.PowerUps = game.GrantPowerUps(seats, PowerUpReveal, PowerUpShield, PowerUpDoublePoints)
	}
	return st, nil
}

type SubmitResult struct {
	BothSubmitted bool `json:"bothSubmitted"`
	// Round is set when the submission completed the round.
	Round *Round `json:"round,omitempty"`
	game.Transition
}

// SubmitChoice records playerID's pick for the open round. shield and
// double_points may ride along with the submission. The round is evaluated as
// soon as both picks are in.
func SubmitChoice(s *State, playerID string, choice Choice, powerUp string, deps game.Deps) (*State, SubmitResult, error) {
	if s.Status != StatusWaiting {
		return nil, SubmitResult{}, models.Lifecycle("Cannot submit choice in current game state")
	}
	seat := s.Players.IndexOf(playerID)
	if seat < 0 {
		return nil, SubmitResult{}, models.ErrNotParticipant
	}
	if !choice.valid(s.Config.Variant) {
		if choice == Lizard || choice == Spock {
			return nil, SubmitResult{}, models.Validation("Lizard and Spock are not available in classic mode")
		}
		return nil, SubmitResult{}, models.Validation("Invalid choice %q", choice)
	}
	if s.Submitted[seat] {
		return nil, SubmitResult{}, models.ErrAlreadyChosen
	}

	next := s.clone()
	if powerUp != "" {
		if !s.Config.PowerUpsEnabled {
			return nil, SubmitResult{}, models.ErrPowerUpsDisabled
		}
		if powerUp != PowerUpShield && powerUp != PowerUpDoublePoints {
			return nil, SubmitResult{}, models.Validation("%s cannot be attached to a choice", powerUp)
		}
		ledger, err := s.PowerUps.Consume(playerID, powerUp, s.CurrentRound)
		if err != nil {
			return nil, SubmitResult{}, err
		}
		next.PowerUps = ledger
		if powerUp == PowerUpShield {
			next.ShieldActive[seat] = true
		}
	}

	c := choice
	if seat == 0 {
		next.Player1Choice = &c
	} else {
		next.Player2Choice = &c
	}
	next.Submitted[seat] = true

	res := SubmitResult{BothSubmitted: next.Submitted[0] && next.Submitted[1]}
	if !res.BothSubmitted {
		return next, res, nil
	}
	evaluated, round, tr, err := Evaluate(next, deps)
	if err != nil {
		return nil, SubmitResult{}, err
	}
	res.Round = &round
	res.Transition = tr
	return evaluated, res, nil
}

// Evaluate scores a round in which both players have chosen.
func Evaluate(s *State, deps game.Deps) (*State, Round, game.Transition, error) {
	if s.Player1Choice == nil || s.Player2Choice == nil {
		return nil, Round{}, game.Transition{}, models.Lifecycle("Both players must submit choices")
	}
	c1, c2 := *s.Player1Choice, *s.Player2Choice
	winner := decide(c1, c2)
	switch {
	case winner == Player1 && s.ShieldActive[1]:
		winner = Draw
	case winner == Player2 && s.ShieldActive[0]:
		winner = Draw
	}

	// Double points only counts for the player who spent it this round.
	doubled := false
	next := s.clone()
	switch winner {
	case Player1:
		doubled = s.PowerUps.UsedIn(s.Players[0].ID, PowerUpDoublePoints, s.CurrentRound)
		next.MatchScore.Player1 += points(doubled)
	case Player2:
		doubled = s.PowerUps.UsedIn(s.Players[1].ID, PowerUpDoublePoints, s.CurrentRound)
		next.MatchScore.Player2 += points(doubled)
	default:
		next.MatchScore.Draws++
	}

	round := Round{
		RoundNumber:   s.CurrentRound,
		Player1Choice: c1,
		Player2Choice: c2,
		Winner:        winner,
		DoublePoints:  doubled,
		Duration:      deps.NowMillis() - s.RoundStartTime,
	}
	next.RoundResults = append(next.RoundResults, round)
	next.ShieldActive = [2]bool{}

	tr := game.Transition{GameOver: true}
	need := game.WinsNeeded(s.Config.BestOf)
	if next.MatchScore.Player1 >= need || next.MatchScore.Player2 >= need {
		tr.MatchOver = true
		next.Status = StatusMatchOver
		switch {
		case next.MatchScore.Player1 > next.MatchScore.Player2:
			next.Winner = Player1
		case next.MatchScore.Player2 > next.MatchScore.Player1:
			next.Winner = Player2
		default:
			next.Winner = Draw
		}
	} else {
		next.Status = StatusRoundOver
	}
	return next, round, tr, nil
}

func points(doubled bool) int {
	if doubled {
		return 2
	}
	return 1
}

func decide(c1, c2 Choice) string {
	if c1 == c2 {
		return Draw
	}
	if slices.Contains(beats[c1], c2) {
		return Player1
	}
	return Player2
}

// NextRound opens the following round.
func NextRound(s *State, deps game.Deps) (*State, error) {
	if s.Status != StatusRoundOver {
		return nil, models.Lifecycle("Can only start next round after current round is over")
	}
	next := s.clone()
	next.CurrentRound++
	next.Player1Choice = nil
	next.Player2Choice = nil
	next.Submitted = [2]bool{}
	next.RoundStartTime = deps.NowMillis()
	next.Status = StatusWaiting
	return next, nil
}

// UseReveal spends playerID's reveal power-up and returns the opponent's
// current pick, which is nil when they have not chosen yet.
func UseReveal(s *State, playerID string) (*State, *Choice, error) {
	if s.Status != StatusWaiting {
		return nil, nil, models.Lifecycle("Cannot use reveal in current game state")
	}
	seat := s.Players.IndexOf(playerID)
	if seat < 0 {
		return nil, nil, models.ErrNotParticipant
	}
	if !s.Config.PowerUpsEnabled {
		return nil, nil, models.ErrPowerUpsDisabled
	}
	ledger, err := s.PowerUps.Consume(playerID, PowerUpReveal, s.CurrentRound)
	if err != nil {
		return nil, nil, err
	}
	next := s.clone()
	next.PowerUps = ledger
	var opp *Choice
	if c := s.choiceOf(1 - seat); c != nil {
		v := *c
		opp = &v
	}
	return next, opp, nil
}

func HasTimeLimitExceeded(s *State, now time.Time) bool {
	if s.Config.TimeLimit == 0 {
		return false
	}
	return now.UnixMilli()-s.RoundStartTime > int64(s.Config.TimeLimit)*1000
}

type Stats struct {
	TotalRounds          int        `json:"totalRounds"`
	AverageRoundDuration int64      `json:"averageRoundDuration"`
	MatchScore           MatchScore `json:"matchScore"`
	MatchWinner          string     `json:"matchWinner,omitempty"`
	RoundsPlayed         int        `json:"roundsPlayed"`
}

func ComputeStats(s *State) Stats {
	st := Stats{TotalRounds: len(s.RoundResults), MatchScore: s.MatchScore, RoundsPlayed: len(s.RoundResults)}
	if n := len(s.RoundResults); n > 0 {
		var sum int64
		for _, r := range s.RoundResults {
			sum += r.Duration
		}
		st.AverageRoundDuration = sum / int64(n)
	}
	need := game.WinsNeeded(s.Config.BestOf)
	switch {
	case s.MatchScore.Player1 >= need:
		st.MatchWinner = Player1
	case s.MatchScore.Player2 >= need:
		st.MatchWinner = Player2
	}
	return st
}

// Package wouldyourather implements the compatibility quiz: each round both
// players secretly pick one of two options, then the picks are revealed and
// matching answers are counted.
package wouldyourather

import (
	"math"

	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/game/questions"
	"github.com/jason-s-yu/gamehub/internal/models"
)

type Status string

const (
	StatusPlaying   Status = "playing"
	StatusRevealing Status = "revealing"
	StatusFinished  Status = "finished"
)

type Mode string

const (
	ModeCasual        Mode = "casual"
	ModeCompatibility Mode = "compatibility"
)

const maxRoundsLimit = 50

type Config struct {
	Categories []questions.Category `json:"categories"`
	MaxRounds  int                  `json:"maxRounds"`
	Mode       Mode                 `json:"mode"`
}

func DefaultConfig() Config {
	return Config{
		Categories: append([]questions.Category(nil), questions.AllCategories...),
		MaxRounds:  10,
		Mode:       ModeCompatibility,
	}
}

// normalize fills zero values from the defaults and validates the rest.
func (c Config) normalize() (Config, error) {
	def := DefaultConfig()
	if len(c.Categories) == 0 {
		c.Categories = def.Categories
	}
	for _, cat := range c.Categories {
		if !cat.Valid() {
			return c, models.Validation("Unknown category %q", cat)
		}
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = def.MaxRounds
	}
	if c.MaxRounds < 1 || c.MaxRounds > maxRoundsLimit {
		return c, models.Validation("maxRounds must be between 1 and %d", maxRoundsLimit)
	}
	switch c.Mode {
	case "":
		c.Mode = def.Mode
	case ModeCasual, ModeCompatibility:
	default:
		return c, models.Validation("Unknown mode %q", c.Mode)
	}
	return c, nil
}

type Choice struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Choice     string `json:"choice"`
	Timestamp  int64  `json:"timestamp"`
}

type RoundResult struct {
	Round    int                `json:"round"`
	Question questions.Question `json:"question"`
	Choices  []Choice           `json:"choices"`
	IsMatch  bool               `json:"isMatch"`
}

type State struct {
	Players         game.Seats          `json:"players"`
	Config          Config              `json:"config"`
	CurrentRound    int                 `json:"currentRound"`
	CurrentQuestion *questions.Question `json:"currentQuestion"`
	Choices         []Choice            `json:"choices"`
	RoundResults    []RoundResult       `json:"roundResults"`
	MatchCount      int                 `json:"matchCount"`
	Status          Status              `json:"status"`
}

func (s *State) GameID() models.GameID { return models.GameWouldYouRather }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.Choices = append([]Choice(nil), s.Choices...)
	c.RoundResults = append([]RoundResult(nil), s.RoundResults...)
	return &c
}

// View hides pending choices while the round is still open so neither player
// can see the other's pick before the reveal.
func (s *State) View() *State {
	if s.Status != StatusPlaying {
		return s
	}
	v := s.clone()
	for i := range v.Choices {
		v.Choices[i].Choice = ""
	}
	return v
}

func (s *State) usedQuestions() map[string]bool {
	used := make(map[string]bool, len(s.RoundResults)+1)
	for _, r := range s.RoundResults {
		used[r.Question.ID] = true
	}
	if s.CurrentQuestion != nil {
		used[s.CurrentQuestion.ID] = true
	}
	return used
}

func Initialize(seats game.Seats, cfg Config, deps game.Deps) (*State, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	q, err := questions.WouldYouRather().Pick(cfg.Categories, nil, deps.Random)
	if err != nil {
		return nil, models.Internal(err)
	}
	return &State{
		Players:         seats,
		Config:          cfg,
		CurrentRound:    1,
		CurrentQuestion: &q,
		Choices:         []Choice{},
		RoundResults:    []RoundResult{},
		Status:          StatusPlaying,
	}, nil
}

// RecordChoice stores a player's pick for the current round. BothChosen in the
// result tells the caller it is time to Reveal.
func RecordChoice(s *State, playerID, choice string, deps game.Deps) (*State, ChoiceResult, error) {
	if s.Status != StatusPlaying {
		return nil, ChoiceResult{}, models.ErrNotPlaying
	}
	if !s.Players.Has(playerID) {
		return nil, ChoiceResult{}, models.ErrNotParticipant
	}
	if choice != "A" && choice != "B" {
		return nil, ChoiceResult{}, models.Validation("Choice must be A or B")
	}
	for _, c := range s.Choices {
		if c.PlayerID == playerID {
			return nil, ChoiceResult{}, models.ErrAlreadyChosen
		}
	}
	c := Choice{
		PlayerID:   playerID,
		PlayerName: s.Players.Name(playerID),
		Choice:     choice,
		Timestamp:  deps.NowMillis(),
	}
	next := s.clone()
	next.Choices = append(next.Choices, c)
	return next, ChoiceResult{Choice: c, BothChosen: len(next.Choices) == len(s.Players)}, nil
}

type ChoiceResult struct {
	Choice     Choice `json:"choice"`
	BothChosen bool   `json:"bothChosen"`
}

// Reveal closes the round once both players have chosen.
func Reveal(s *State) (*State, RoundResult, error) {
	if s.Status != StatusPlaying {
		return nil, RoundResult{}, models.ErrNotPlaying
	}
	if len(s.Choices) != len(s.Players) || s.CurrentQuestion == nil {
		return nil, RoundResult{}, models.Lifecycle("Both players must choose before the reveal")
	}
	rr := RoundResult{
		Round:    s.CurrentRound,
		Question: *s.CurrentQuestion,
		Choices:  append([]Choice(nil), s.Choices...),
		IsMatch:  s.Choices[0].Choice == s.Choices[1].Choice,
	}
	next := s.clone()
	next.RoundResults = append(next.RoundResults, rr)
	if rr.IsMatch {
		next.MatchCount++
	}
	next.Status = StatusRevealing
	return next, rr, nil
}

// NextQuestion moves from the reveal to the next round, or finishes the game
// after the last round.
func NextQuestion(s *State, deps game.Deps) (*State, game.Transition, error) {
	if s.Status != StatusRevealing {
		return nil, game.Transition{}, models.Lifecycle("The current round has not been revealed yet")
	}
	next := s.clone()
	next.Choices = []Choice{}
	if s.CurrentRound >= s.Config.MaxRounds {
		next.CurrentQuestion = nil
		next.Status = StatusFinished
		return next, game.Transition{GameOver: true, MatchOver: true}, nil
	}
	q, err := questions.WouldYouRather().Pick(s.Config.Categories, s.usedQuestions(), deps.Random)
	if err != nil {
		return nil, game.Transition{}, models.Internal(err)
	}
	next.CurrentRound++
	next.CurrentQuestion = &q
	next.Status = StatusPlaying
	return next, game.Transition{}, nil
}

type Stats struct {
	TotalRounds             int `json:"totalRounds"`
	Matches                 int `json:"matches"`
	Differences             int `json:"differences"`
	CompatibilityPercentage int `json:"compatibilityPercentage"`
}

func ComputeStats(s *State) Stats {
	total := len(s.RoundResults)
	st := Stats{TotalRounds: total, Matches: s.MatchCount, Differences: total - s.MatchCount}
	if total > 0 {
		st.CompatibilityPercentage = int(math.Round(float64(s.MatchCount) / float64(total) * 100))
	}
	return st
}

// Package thisorthat implements the timed quick-pick quiz. It plays like
// would-you-rather but each question has a time budget and the time both
// players took is recorded per round.
package thisorthat

import (
	"math"
	"time"

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

type Config struct {
	Categories []questions.Category `json:"categories"`
	MaxRounds  int                  `json:"maxRounds"`
	// TimePerQuestion is in seconds.
	TimePerQuestion int `json:"timePerQuestion"`
}

func DefaultConfig() Config {
	return Config{
		Categories:      append([]questions.Category(nil), questions.AllCategories...),
		MaxRounds:       10,
		TimePerQuestion: 10,
	}
}

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
	if c.MaxRounds < 1 || c.MaxRounds > 50 {
		return c, models.Validation("maxRounds must be between 1 and 50")
	}
	if c.TimePerQuestion == 0 {
		c.TimePerQuestion = def.TimePerQuestion
	}
	if c.TimePerQuestion < 3 || c.TimePerQuestion > 60 {
		return c, models.Validation("timePerQuestion must be between 3 and 60 seconds")
	}
	return c, nil
}

// TimeLimit is the per-question budget as a duration.
func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.TimePerQuestion) * time.Second
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
	// TimeElapsed is in whole seconds.
	TimeElapsed int  `json:"timeElapsed"`
	TimedOut    bool `json:"timedOut,omitempty"`
}

type State struct {
	Players           game.Seats          `json:"players"`
	Config            Config              `json:"config"`
	CurrentRound      int                 `json:"currentRound"`
	CurrentQuestion   *questions.Question `json:"currentQuestion"`
	Choices           []Choice            `json:"choices"`
	RoundResults      []RoundResult       `json:"roundResults"`
	MatchCount        int                 `json:"matchCount"`
	QuestionStartTime int64               `json:"questionStartTime"`
	Status            Status              `json:"status"`
}

func (s *State) GameID() models.GameID { return models.GameThisOrThat }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.Choices = append([]Choice(nil), s.Choices...)
	c.RoundResults = append([]RoundResult(nil), s.RoundResults...)
	return &c
}

// View hides pending picks until the round completes.
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
	q, err := questions.ThisOrThat().Pick(cfg.Categories, nil, deps.Random)
	if err != nil {
		return nil, models.Internal(err)
	}
	return &State{
		Players:           seats,
		Config:            cfg,
		CurrentRound:      1,
		CurrentQuestion:   &q,
		Choices:           []Choice{},
		RoundResults:      []RoundResult{},
		QuestionStartTime: deps.NowMillis(),
		Status:            StatusPlaying,
	}, nil
}

type ChoiceResult struct {
	Choice     Choice `json:"choice"`
	BothChosen bool   `json:"bothChosen"`
}

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

// CompleteRound records the round result once both players have picked.
func CompleteRound(s *State, deps game.Deps) (*State, RoundResult, error) {
	if s.Status != StatusPlaying {
		return nil, RoundResult{}, models.ErrNotPlaying
	}
	if len(s.Choices) != len(s.Players) {
		return nil, RoundResult{}, models.Lifecycle("Both players must choose before the round completes")
	}
	return complete(s, deps, false)
}

// HasTimeLimitExceeded reports whether the current question ran out of time.
func HasTimeLimitExceeded(s *State, now time.Time) bool {
	if s.Status != StatusPlaying {
		return false
	}
	return now.UnixMilli()-s.QuestionStartTime > s.Config.TimeLimit().Milliseconds()
}

// ExpireRound closes a round whose time ran out. Missing picks count as a
// mismatch.
func ExpireRound(s *State, deps game.Deps) (*State, RoundResult, error) {
	if !HasTimeLimitExceeded(s, deps.Clock.Now()) {
		return nil, RoundResult{}, models.Lifecycle("The question still has time left")
	}
	return complete(s, deps, true)
}

func complete(s *State, deps game.Deps, timedOut bool) (*State, RoundResult, error) {
	if s.CurrentQuestion == nil {
		return nil, RoundResult{}, models.ErrNotPlaying
	}
	elapsed := deps.NowMillis() - s.QuestionStartTime
	rr := RoundResult{
		Round:       s.CurrentRound,
		Question:    *s.CurrentQuestion,
		Choices:     append([]Choice(nil), s.Choices...),
		IsMatch:     len(s.Choices) == 2 && s.Choices[0].Choice == s.Choices[1].Choice,
		TimeElapsed: int(math.Round(float64(elapsed) / 1000)),
		TimedOut:    timedOut,
	}
	next := s.clone()
	next.RoundResults = append(next.RoundResults, rr)
	if rr.IsMatch {
		next.MatchCount++
	}
	next.Status = StatusRevealing
	return next, rr, nil
}

// NextQuestion starts the next round or finishes the quiz.
func NextQuestion(s *State, deps game.Deps) (*State, game.Transition, error) {
	if s.Status != StatusRevealing {
		return nil, game.Transition{}, models.Lifecycle("The current round is not complete yet")
	}
	next := s.clone()
	next.Choices = []Choice{}
	if s.CurrentRound >= s.Config.MaxRounds {
		next.CurrentQuestion = nil
		next.Status = StatusFinished
		return next, game.Transition{GameOver: true, MatchOver: true}, nil
	}
	q, err := questions.ThisOrThat().Pick(s.Config.Categories, s.usedQuestions(), deps.Random)
	if err != nil {
		return nil, game.Transition{}, models.Internal(err)
	}
	next.CurrentRound++
	next.CurrentQuestion = &q
	next.QuestionStartTime = deps.NowMillis()
	next.Status = StatusPlaying
	return next, game.Transition{}, nil
}

type Stats struct {
	TotalRounds             int `json:"totalRounds"`
	Matches                 int `json:"matches"`
	Differences             int `json:"differences"`
	CompatibilityPercentage int `json:"compatibilityPercentage"`
	AverageTime             int `json:"averageTime"`
}

func ComputeStats(s *State) Stats {
	total := len(s.RoundResults)
	st := Stats{TotalRounds: total, Matches: s.MatchCount, Differences: total - s.MatchCount}
	if total == 0 {
		return st
	}
	sum := 0
	for _, r := range s.RoundResults {
		sum += r.TimeElapsed
	}
	st.CompatibilityPercentage = int(math.Round(float64(s.MatchCount) / float64(total) * 100))
	st.AverageTime = int(math.Round(float64(sum) / float64(total)))
	return st
}

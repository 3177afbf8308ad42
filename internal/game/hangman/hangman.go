// Package hangman implements two-player hangman, either cooperative against
// a bank word or player-versus-player with one side setting the word.
package hangman

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
)

type Status string

const (
	StatusSetup   Status = "setup"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

type Mode string

const (
	ModePvP  Mode = "pvp"
	ModeCoop Mode = "coop"
)

const (
	PowerUpRevealLetter = "reveal_letter"
	PowerUpRemoveWrong  = "remove_wrong"
	PowerUpExtraGuess   = "extra_guess"
)

// WinnerTeam is the winner recorded when a cooperative game is solved.
const WinnerTeam = "team"

var wordPattern = regexp.MustCompile(`^[A-Z ]+$`)

type Config struct {
	Mode            Mode       `json:"mode"`
	Category        Category   `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`
	TimeLimit       int        `json:"timeLimit"`
	PowerUpsEnabled bool       `json:"powerUpsEnabled"`
	MaxWrongGuesses int        `json:"maxWrongGuesses"`
}

func DefaultConfig() Config {
	return Config{Mode: ModeCoop, Category: Movies, Difficulty: Medium, MaxWrongGuesses: 6}
}

func (c Config) normalize() (Config, error) {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Category == "" {
		c.Category = d.Category
	}
	if c.Difficulty == "" {
		c.Difficulty = d.Difficulty
	}
	if c.MaxWrongGuesses == 0 {
		c.MaxWrongGuesses = d.MaxWrongGuesses
	}
	if c.Mode != ModePvP && c.Mode != ModeCoop {
		return c, models.Validation("mode must be pvp or coop")
	}
	if !validCategory(c.Category) {
		return c, models.Validation("unknown category %q", c.Category)
	}
	switch c.Difficulty {
	case Easy, Medium, Hard:
	default:
		return c, models.Validation("difficulty must be easy, medium or hard")
	}
	if c.MaxWrongGuesses < 1 || c.MaxWrongGuesses > 26 {
		return c, models.Validation("maxWrongGuesses must be between 1 and 26")
	}
	if c.TimeLimit < 0 || c.TimeLimit > 300 {
		return c, models.Validation("timeLimit must be between 0 and 300 seconds")
	}
	return c, nil
}

type Guess struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Letter     string `json:"letter"`
	Correct    bool   `json:"correct"`
	Timestamp  int64  `json:"timestamp"`
}

type State struct {
	Players        game.Seats    `json:"players"`
	Config         Config        `json:"config"`
	Word           string        `json:"-"`
	WordSetter     string        `json:"wordSetter,omitempty"`
	Category       Category      `json:"category"`
	GuessedLetters []string      `json:"guessedLetters"`
	WrongGuesses   []string      `json:"wrongGuesses"`
	WrongCount     int           `json:"wrongGuessCount"`
	BonusGuesses   int           `json:"bonusGuesses"`
	PowerUps       game.PowerUps `json:"powerUps"`
	GuessStartTime int64         `json:"guessStartTime"`
	GuessHistory   []Guess       `json:"guessHistory"`
	Status         Status        `json:"status"`
	Winner         string        `json:"winner,omitempty"`
}

func (s *State) GameID() models.GameID { return models.GameHangman }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.GuessedLetters = append([]string(nil), s.GuessedLetters...)
	c.WrongGuesses = append([]string(nil), s.WrongGuesses...)
	c.PowerUps = s.PowerUps.Clone()
	c.GuessHistory = append([]Guess(nil), s.GuessHistory...)
	return &c
}

// Done reports whether the word was solved or the guesses ran out.
func (s *State) Done() bool {
	return s.Status == StatusWon || s.Status == StatusLost
}

// AllowedWrongGuesses includes any extra_guess bonus.
func (s *State) AllowedWrongGuesses() int {
	return s.Config.MaxWrongGuesses + s.BonusGuesses
}

// MaskedWord shows guessed letters and spaces and an underscore for the rest.
func (s *State) MaskedWord() string {
	var b strings.Builder
	for _, r := range s.Word {
		switch {
		case r == ' ':
			b.WriteRune(' ')
		case slices.Contains(s.GuessedLetters, string(r)):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// View is the outward form of the state. Word is only filled when reveal is
// set, which callers do once the game is over.
type View struct {
	*State
	MaskedWord string  `json:"maskedWord"`
	Word       *string `json:"word,omitempty"`
}

func (s *State) View(reveal bool) View {
	v := View{State: s, MaskedWord: s.MaskedWord()}
	if reveal {
		w := s.Word
		v.Word = &w
	}
	return v
}

func Initialize(seats game.Seats, cfg Config, deps game.Deps) (*State, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	st := &State{
		Players:        seats,
		Config:         cfg,
		Category:       cfg.Category,
		GuessedLetters: []string{},
		WrongGuesses:   []string{},
		PowerUps:       game.PowerUps{},
		GuessStartTime: deps.NowMillis(),
		GuessHistory:   []Guess{},
		Status:         StatusSetup,
	}
	if cfg.PowerUpsEnabled {
		st.PowerUps = game.GrantPowerUps(seats, PowerUpRevealLetter, PowerUpRemoveWrong, PowerUpExtraGuess)
	}
	if cfg.Mode == ModeCoop {
		word, err := PickWord(cfg.Category, cfg.Difficulty, deps.Random)
		if err != nil {
			return nil, models.Internal(err)
		}
		st.Word = word
		st.Status = StatusPlaying
	}
	return st, nil
}

func letterCount(word string) int {
	return len(strings.ReplaceAll(word, " ", ""))
}

// SetWord stores the PvP secret word. The setter sits out the guessing.
func SetWord(s *State, playerID, word string, deps game.Deps) (*State, error) {
	if s.Config.Mode != ModePvP {
		return nil, models.Lifecycle("Word setting is only for PvP mode")
	}
	if s.Status != StatusSetup {
		return nil, models.Lifecycle("Can only set word during setup phase")
	}
	if !s.Players.Has(playerID) {
		return nil, models.ErrNotParticipant
	}
	w := strings.ToUpper(strings.TrimSpace(word))
	if w == "" || !wordPattern.MatchString(w) {
		return nil, models.Validation("Word must contain only letters and spaces")
	}
	n := letterCount(w)
	switch s.Config.Difficulty {
	case Easy:
		if n < 4 || n > 6 {
			return nil, models.Validation("Easy mode: word must be 4-6 letters")
		}
	case Medium:
		if n < 7 || n > 9 {
			return nil, models.Validation("Medium mode: word must be 7-9 letters")
		}
	case Hard:
		if n < 10 {
			return nil, models.Validation("Hard mode: word must be 10+ letters")
		}
	}
	next := s.clone()
	next.Word = w
	next.WordSetter = playerID
	next.Status = StatusPlaying
	next.GuessStartTime = deps.NowMillis()
	return next, nil
}

type GuessResult struct {
	Guess Guess `json:"guess"`
	// Revealed is the letter uncovered by reveal_letter, if one was used.
	Revealed string `json:"revealed,omitempty"`
	game.Transition
}

// GuessLetter applies an optional power-up and then the guess itself.
func GuessLetter(s *State, playerID, letter, powerUp string, deps game.Deps) (*State, GuessResult, error) {
	if s.Status != StatusPlaying {
		return nil, GuessResult{}, models.Lifecycle("Cannot guess letter when game is not playing")
	}
	if !s.Players.Has(playerID) {
		return nil, GuessResult{}, models.ErrNotParticipant
	}
	if s.Config.Mode == ModePvP && playerID == s.WordSetter {
		return nil, GuessResult{}, models.Authority("The word setter cannot guess")
	}
	l := strings.ToUpper(strings.TrimSpace(letter))
	if len(l) != 1 || l[0] < 'A' || l[0] > 'Z' {
		return nil, GuessResult{}, models.Validation("Must guess a single letter")
	}
	if slices.Contains(s.GuessedLetters, l) {
		return nil, GuessResult{}, models.Validation("Letter already guessed")
	}

	next := s.clone()
	var res GuessResult
	if powerUp != "" {
		if !s.Config.PowerUpsEnabled {
			return nil, GuessResult{}, models.ErrPowerUpsDisabled
		}
		ledger, err := s.PowerUps.Consume(playerID, powerUp, len(s.GuessHistory)+1)
		if err != nil {
			return nil, GuessResult{}, err
		}
		next.PowerUps = ledger
		switch powerUp {
		case PowerUpRevealLetter:
			res.Revealed = next.revealLetter(l, deps)
		case PowerUpRemoveWrong:
			if n := len(next.WrongGuesses); n > 0 {
				next.WrongGuesses = next.WrongGuesses[:n-1]
				next.WrongCount = max(0, next.WrongCount-1)
			}
		case PowerUpExtraGuess:
			next.BonusGuesses++
		default:
			return nil, GuessResult{}, models.Validation("Unknown power-up type %q", powerUp)
		}
	}

	now := deps.NowMillis()
	correct := strings.Contains(next.Word, l)
	next.GuessedLetters = append(next.GuessedLetters, l)
	if !correct {
		next.WrongGuesses = append(next.WrongGuesses, l)
		next.WrongCount++
	}
	g := Guess{
		PlayerID:   playerID,
		PlayerName: s.Players.Name(playerID),
		Letter:     l,
		Correct:    correct,
		Timestamp:  now,
	}
	next.GuessHistory = append(next.GuessHistory, g)
	next.GuessStartTime = now
	res.Guess = g

	switch {
	case next.solved():
		next.Status = StatusWon
		if next.Config.Mode == ModeCoop {
			next.Winner = WinnerTeam
		} else {
			next.Winner = playerID
		}
		res.GameOver, res.MatchOver = true, true
	case next.WrongCount >= next.AllowedWrongGuesses():
		next.Status = StatusLost
		if next.Config.Mode == ModePvP {
			next.Winner = next.WordSetter
		}
		res.GameOver, res.MatchOver = true, true
	}
	return next, res, nil
}

// revealLetter adds a random unguessed word letter other than skip.
func (s *State) revealLetter(skip string, deps game.Deps) string {
	var hidden []string
	for _, r := range s.Word {
		l := string(r)
		if r == ' ' || l == skip || slices.Contains(s.GuessedLetters, l) || slices.Contains(hidden, l) {
			continue
		}
		hidden = append(hidden, l)
	}
	if len(hidden) == 0 {
		return ""
	}
	l := hidden[deps.Random.Intn(len(hidden))]
	s.GuessedLetters = append(s.GuessedLetters, l)
	return l
}

func (s *State) solved() bool {
	for _, r := range s.Word {
		if r != ' ' && !slices.Contains(s.GuessedLetters, string(r)) {
			return false
		}
	}
	return true
}

func HasTimeLimitExceeded(s *State, now time.Time) bool {
	if s.Config.TimeLimit == 0 || s.Status != StatusPlaying {
		return false
	}
	return now.UnixMilli()-s.GuessStartTime > int64(s.Config.TimeLimit)*1000
}

type Stats struct {
	TotalGuesses   int    `json:"totalGuesses"`
	CorrectGuesses int    `json:"correctGuesses"`
	WrongGuesses   int    `json:"wrongGuesses"`
	Accuracy       int    `json:"accuracy"`
	MaskedWord     string `json:"maskedWord"`
	IsComplete     bool   `json:"isComplete"`
}

func ComputeStats(s *State) Stats {
	st := Stats{
		TotalGuesses: len(s.GuessHistory),
		WrongGuesses: s.WrongCount,
		MaskedWord:   s.MaskedWord(),
		IsComplete:   s.Done(),
	}
	for _, g := range s.GuessHistory {
		if g.Correct {
			st.CorrectGuesses++
		}
	}
	if st.TotalGuesses > 0 {
		st.Accuracy = (st.CorrectGuesses*100 + st.TotalGuesses/2) / st.TotalGuesses
	}
	return st
}

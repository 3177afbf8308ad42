// Package tictactoe implements best-of-N tic-tac-toe on 3x3 to 5x5 boards
// with optional power-ups and per-move time limits.
package tictactoe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
)

type Status string

const (
	StatusPlaying   Status = "playing"
	StatusGameOver  Status = "game_over"
	StatusMatchOver Status = "match_over"
)

// Mark is a cell owner. The empty mark encodes as null.
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

func (m Mark) MarshalJSON() ([]byte, error) {
	if m == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

func (m *Mark) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*m = Mark(s)
	return nil
}

func (m Mark) opponent() Mark {
	if m == X {
		return O
	}
	return X
}

const (
	PowerUpSteal     = "steal"
	PowerUpBlock     = "block"
	PowerUpExtraTurn = "extra_turn"
)

const Draw = "draw"

type Config struct {
	BoardSize       int  `json:"boardSize"`
	BestOf          int  `json:"bestOf"`
	TimeLimit       int  `json:"timeLimit"` // seconds per move, 0 = unlimited
	PowerUpsEnabled bool `json:"powerUpsEnabled"`
}

func DefaultConfig() Config {
	return Config{BoardSize: 3, BestOf: 3}
}

func (c Config) normalize() (Config, error) {
	if c.BoardSize == 0 {
		c.BoardSize = 3
	}
	if c.BestOf == 0 {
		c.BestOf = 3
	}
	if c.BoardSize < 3 || c.BoardSize > 5 {
		return c, models.Validation("boardSize must be 3, 4 or 5")
	}
	if !game.ValidBestOf(c.BestOf) {
		return c, models.Validation("bestOf must be 1, 3, 5 or 7")
	}
	if c.TimeLimit < 0 || c.TimeLimit > 300 {
		return c, models.Validation("timeLimit must be between 0 and 300 seconds")
	}
	return c, nil
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Move struct {
	Row       int   `json:"row"`
	Col       int   `json:"col"`
	Player    Mark  `json:"player"`
	Timestamp int64 `json:"timestamp"`
}

type GameResult struct {
	GameNumber int    `json:"gameNumber"`
	Winner     string `json:"winner"`
	Moves      []Move `json:"moves"`
	Duration   int64  `json:"duration"`
	TimedOut   bool   `json:"timedOut,omitempty"`
}

type MatchScore struct {
	X     int `json:"X"`
	O     int `json:"O"`
	Draws int `json:"draws"`
}

type State struct {
	Players       game.Seats    `json:"players"`
	Config        Config        `json:"config"`
	Board         [][]Mark      `json:"board"`
	CurrentPlayer Mark          `json:"currentPlayer"`
	GameNumber    int           `json:"gameNumber"`
	MatchScore    MatchScore    `json:"matchScore"`
	Moves         []Move        `json:"moves"`
	PowerUps      game.PowerUps `json:"powerUps"`
	BlockedCell   *Position     `json:"blockedCell"`
	// BlockedBy is the mark that placed the block; it lifts after the other mark moves.
	BlockedBy     Mark         `json:"blockedBy,omitempty"`
	ExtraTurn     Mark         `json:"extraTurn,omitempty"`
	MoveStartTime int64        `json:"moveStartTime"`
	GameStartTime int64        `json:"gameStartTime"`
	GameResults   []GameResult `json:"gameResults"`
	Status        Status       `json:"status"`
	Winner        string       `json:"winner,omitempty"`
}

func (s *State) GameID() models.GameID { return models.GameTicTacToe }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.Board = cloneBoard(s.Board)
	c.Moves = append([]Move(nil), s.Moves...)
	c.PowerUps = s.PowerUps.Clone()
	c.GameResults = append([]GameResult(nil), s.GameResults...)
	if s.BlockedCell != nil {
		b := *s.BlockedCell
		c.BlockedCell = &b
	}
	return &c
}

// MarkOf returns the mark played by playerID. The first seat is always X.
func (s *State) MarkOf(playerID string) (Mark, bool) {
	switch s.Players.IndexOf(playerID) {
	case 0:
		return X, true
	case 1:
		return O, true
	}
	return Empty, false
}

// PlayerFor returns the player id holding mark.
func (s *State) PlayerFor(mark Mark) string {
	if mark == X {
		return s.Players[0].ID
	}
	return s.Players[1].ID
}

// CurrentPlayerID is the id of the player on move.
func (s *State) CurrentPlayerID() string {
	return s.PlayerFor(s.CurrentPlayer)
}

func newBoard(size int) [][]Mark {
	b := make([][]Mark, size)
	for i := range b {
		b[i] = make([]Mark, size)
	}
	return b
}

func cloneBoard(b [][]Mark) [][]Mark {
	out := make([][]Mark, len(b))
	for i := range b {
		out[i] = append([]Mark(nil), b[i]...)
	}
	return out
}

func Initialize(seats game.Seats, cfg Config, deps game.Deps) (*State, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	now := deps.NowMillis()
	st := &State{
		Players:       seats,
		Config:        cfg,
		Board:         newBoard(cfg.BoardSize),
		CurrentPlayer: X,
		GameNumber:    1,
		Moves:         []Move{},
		PowerUps:      game.PowerUps{},
		MoveStartTime: now,
		GameStartTime: now,
		GameResults:   []GameResult{},
		Status:        StatusPlaying,
	}
	if cfg.PowerUpsEnabled {
		st.PowerUps = game.GrantPowerUps(seats, PowerUpSteal, PowerUpBlock, PowerUpExtraTurn)
	}
	return st, nil
}

type MoveResult struct {
	Move Move `json:"move"`
	game.Transition
}

func (s *State) checkActor(playerID string) (Mark, error) {
	if s.Status != StatusPlaying {
		return Empty, models.ErrNotPlaying
	}
	mark, ok := s.MarkOf(playerID)
	if !ok {
		return Empty, models.ErrNotParticipant
	}
	if s.CurrentPlayer != mark {
		return Empty, models.ErrNotYourTurn
	}
	return mark, nil
}

func (s *State) inBounds(row, col int) bool {
	n := s.Config.BoardSize
	return row >= 0 && row < n && col >= 0 && col < n
}

// MakeMove places the mover's mark at (row, col).
func MakeMove(s *State, playerID string, row, col int, deps game.Deps) (*State, MoveResult, error) {
	mark, err := s.checkActor(playerID)
	if err != nil {
		return nil, MoveResult{}, err
	}
	if s.BlockedCell != nil && s.BlockedCell.Row == row && s.BlockedCell.Col == col {
		return nil, MoveResult{}, models.Validation("This cell is blocked")
	}
	if !s.inBounds(row, col) {
		return nil, MoveResult{}, models.Validation("Invalid move position")
	}
	if s.Board[row][col] != Empty {
		return nil, MoveResult{}, models.Validation("Cell is already occupied")
	}

	now := deps.NowMillis()
	next := s.clone()
	next.Board[row][col] = mark
	mv := Move{Row: row, Col: col, Player: mark, Timestamp: now}
	next.Moves = append(next.Moves, mv)
	if next.BlockedCell != nil && next.BlockedBy != mark {
		next.BlockedCell = nil
		next.BlockedBy = Empty
	}

	res := MoveResult{Move: mv}
	if winner := checkWinner(next.Board); winner != Empty {
		res.Transition = next.finishGame(string(winner), now, false)
		return next, res, nil
	}
	if isBoardFull(next.Board) {
		res.Transition = next.finishGame(Draw, now, false)
		return next, res, nil
	}

	if next.ExtraTurn == mark {
		next.ExtraTurn = Empty
	} else {
		next.CurrentPlayer = mark.opponent()
		res.TurnAdvances = true
	}
	next.MoveStartTime = now
	return next, res, nil
}

// finishGame records the result of the current game on s, which must be a
// fresh clone.
func (s *State) finishGame(winner string, now int64, timedOut bool) game.Transition {
	s.GameResults = append(s.GameResults, GameResult{
		GameNumber: s.GameNumber,
		Winner:     winner,
		Moves:      append([]Move(nil), s.Moves...),
		Duration:   now - s.GameStartTime,
		TimedOut:   timedOut,
	})
	switch winner {
	case string(X):
		s.MatchScore.X++
	case string(O):
		s.MatchScore.O++
	default:
		s.MatchScore.Draws++
	}
	s.Status = StatusGameOver
	s.Winner = winner
	s.BlockedCell = nil
	s.BlockedBy = Empty
	s.ExtraTurn = Empty
	return game.Transition{GameOver: true, MatchOver: s.MatchWinner() != Empty}
}

// MatchWinner is the mark that has won the series, if any.
func (s *State) MatchWinner() Mark {
	need := game.WinsNeeded(s.Config.BestOf)
	switch {
	case s.MatchScore.X >= need:
		return X
	case s.MatchScore.O >= need:
		return O
	}
	return Empty
}

type PowerUpResult struct {
	Type   string `json:"type"`
	Result string `json:"result"`
	game.Transition
}

// UsePowerUp consumes one of the mover's power-ups. Power-ups are played on
// your own turn and do not pass it.
func UsePowerUp(s *State, playerID, powerUp string, target *Position, deps game.Deps) (*State, PowerUpResult, error) {
	mark, err := s.checkActor(playerID)
	if err != nil {
		return nil, PowerUpResult{}, err
	}
	if !s.Config.PowerUpsEnabled {
		return nil, PowerUpResult{}, models.ErrPowerUpsDisabled
	}
	ledger, err := s.PowerUps.Consume(playerID, powerUp, s.GameNumber)
	if err != nil {
		return nil, PowerUpResult{}, err
	}

	next := s.clone()
	next.PowerUps = ledger
	res := PowerUpResult{Type: powerUp}

	switch powerUp {
	case PowerUpSteal:
		if target == nil || !s.inBounds(target.Row, target.Col) {
			return nil, PowerUpResult{}, models.Validation("Target position required for steal power-up")
		}
		if s.Board[target.Row][target.Col] != mark.opponent() {
			return nil, PowerUpResult{}, models.Validation("Can only steal opponent cells")
		}
		next.Board[target.Row][target.Col] = mark
		res.Result = fmt.Sprintf("Stole cell at (%d, %d)", target.Row, target.Col)
		if checkWinner(next.Board) == mark {
			res.Transition = next.finishGame(string(mark), deps.NowMillis(), false)
		}
	case PowerUpBlock:
		if target == nil || !s.inBounds(target.Row, target.Col) {
			return nil, PowerUpResult{}, models.Validation("Target position required for block power-up")
		}
		if s.Board[target.Row][target.Col] != Empty {
			return nil, PowerUpResult{}, models.Validation("Can only block empty cells")
		}
		if countEmpty(s.Board) == 1 {
			return nil, PowerUpResult{}, models.Validation("Cannot block the last empty cell")
		}
		next.BlockedCell = &Position{Row: target.Row, Col: target.Col}
		next.BlockedBy = mark
		res.Result = fmt.Sprintf("Blocked cell at (%d, %d)", target.Row, target.Col)
	case PowerUpExtraTurn:
		next.ExtraTurn = mark
		res.Result = "Extra turn granted"
	default:
		return nil, PowerUpResult{}, models.Validation("Unknown power-up type %q", powerUp)
	}
	return next, res, nil
}

func countEmpty(b [][]Mark) int {
	n := 0
	for _, row := range b {
		for _, c := range row {
			if c == Empty {
				n++
			}
		}
	}
	return n
}

// NextGame starts the next game of the series, or ends the match when a side
// has reached the majority of games.
func NextGame(s *State, deps game.Deps) (*State, game.Transition, error) {
	if s.Status != StatusGameOver {
		return nil, game.Transition{}, models.Lifecycle("Current game is not over")
	}
	next := s.clone()
	if s.MatchWinner() != Empty {
		next.Status = StatusMatchOver
		return next, game.Transition{GameOver: true, MatchOver: true}, nil
	}
	now := deps.NowMillis()
	next.Board = newBoard(s.Config.BoardSize)
	if s.GameNumber%2 == 0 {
		next.CurrentPlayer = X
	} else {
		next.CurrentPlayer = O
	}
	next.GameNumber++
	next.Moves = []Move{}
	next.BlockedCell = nil
	next.BlockedBy = Empty
	next.ExtraTurn = Empty
	next.MoveStartTime = now
	next.GameStartTime = now
	next.Status = StatusPlaying
	next.Winner = ""
	return next, game.Transition{}, nil
}

// HasTimeLimitExceeded reports whether the player on move ran out of time.
func HasTimeLimitExceeded(s *State, now time.Time) bool {
	if s.Status != StatusPlaying || s.Config.TimeLimit == 0 {
		return false
	}
	return now.UnixMilli()-s.MoveStartTime > int64(s.Config.TimeLimit)*1000
}

// ForfeitOnTimeout ends the current game in favour of the player not on move.
func ForfeitOnTimeout(s *State, deps game.Deps) (*State, game.Transition, error) {
	if !HasTimeLimitExceeded(s, deps.Clock.Now()) {
		return nil, game.Transition{}, models.Lifecycle("The move timer has not expired")
	}
	next := s.clone()
	tr := next.finishGame(string(s.CurrentPlayer.opponent()), deps.NowMillis(), true)
	return next, tr, nil
}

func checkWinner(board [][]Mark) Mark {
	n := len(board)
	line := func(get func(i int) Mark) Mark {
		first := get(0)
		if first == Empty {
			return Empty
		}
		for i := 1; i < n; i++ {
			if get(i) != first {
				return Empty
			}
		}
		return first
	}
	for r := 0; r < n; r++ {
		if m := line(func(i int) Mark { return board[r][i] }); m != Empty {
			return m
		}
	}
	for c := 0; c < n; c++ {
		if m := line(func(i int) Mark { return board[i][c] }); m != Empty {
			return m
		}
	}
	if m := line(func(i int) Mark { return board[i][i] }); m != Empty {
		return m
	}
	return line(func(i int) Mark { return board[i][n-1-i] })
}

func isBoardFull(board [][]Mark) bool {
	for _, row := range board {
		for _, c := range row {
			if c == Empty {
				return false
			}
		}
	}
	return true
}

type Stats struct {
	TotalGames          int        `json:"totalGames"`
	AverageGameDuration int64      `json:"averageGameDuration"`
	MatchScore          MatchScore `json:"matchScore"`
	MatchWinner         *Mark      `json:"matchWinner"`
	GamesPlayed         int        `json:"gamesPlayed"`
}

func ComputeStats(s *State) Stats {
	st := Stats{TotalGames: len(s.GameResults), MatchScore: s.MatchScore, GamesPlayed: len(s.GameResults)}
	if n := len(s.GameResults); n > 0 {
		var sum int64
		for _, g := range s.GameResults {
			sum += g.Duration
		}
		st.AverageGameDuration = sum / int64(n)
	}
	if w := s.MatchWinner(); w != Empty {
		st.MatchWinner = &w
	}
	return st
}

// Package connect4 implements best-of-N Connect 4 with gravity drops,
// three board sizes and optional power-ups.
package connect4

import (
	"encoding/json"
	"fmt"
	"slices"
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

// Disc is a cell owner. The empty disc encodes as null.
type Disc string

const (
	Empty  Disc = ""
	Yellow Disc = "Yellow"
	Red    Disc = "Red"
)

func (d Disc) MarshalJSON() ([]byte, error) {
	if d == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

func (d *Disc) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = Disc(s)
	return nil
}

func (d Disc) opponent() Disc {
	if d == Yellow {
		return Red
	}
	return Yellow
}

const (
	PowerUpRemoveDisc  = "remove_disc"
	PowerUpBlockColumn = "block_column"
	PowerUpSwapColors  = "swap_colors"
	PowerUpExtraTurn   = "extra_turn"
)

const Draw = "draw"

// boardSizes maps the configured size name to rows and columns.
var boardSizes = map[string][2]int{
	"6x7": {6, 7},
	"7x8": {7, 8},
	"8x9": {8, 9},
}

type Config struct {
	BoardSize       string `json:"boardSize"`
	BestOf          int    `json:"bestOf"`
	TimeLimit       int    `json:"timeLimit"`
	PowerUpsEnabled bool   `json:"powerUpsEnabled"`
}

func DefaultConfig() Config {
	return Config{BoardSize: "6x7", BestOf: 3}
}

func (c Config) normalize() (Config, error) {
	if c.BoardSize == "" {
		c.BoardSize = "6x7"
	}
	if c.BestOf == 0 {
		c.BestOf = 3
	}
	if _, ok := boardSizes[c.BoardSize]; !ok {
		return c, models.Validation("boardSize must be 6x7, 7x8 or 8x9")
	}
	if !game.ValidBestOf(c.BestOf) {
		return c, models.Validation("bestOf must be 1, 3, 5 or 7")
	}
	if c.TimeLimit < 0 || c.TimeLimit > 300 {
		return c, models.Validation("timeLimit must be between 0 and 300 seconds")
	}
	return c, nil
}

// Dimensions returns rows and columns of the configured board.
func (c Config) Dimensions() (rows, cols int) {
	d := boardSizes[c.BoardSize]
	return d[0], d[1]
}

type Move struct {
	Col       int   `json:"col"`
	Row       int   `json:"row"`
	Player    Disc  `json:"player"`
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
	Yellow int `json:"Yellow"`
	Red    int `json:"Red"`
	Draws  int `json:"draws"`
}

type State struct {
	Players        game.Seats    `json:"players"`
	Config         Config        `json:"config"`
	Board          [][]Disc      `json:"board"`
	CurrentPlayer  Disc          `json:"currentPlayer"`
	GameNumber     int           `json:"gameNumber"`
	MatchScore     MatchScore    `json:"matchScore"`
	Moves          []Move        `json:"moves"`
	PowerUps       game.PowerUps `json:"powerUps"`
	BlockedColumns []int         `json:"blockedColumns"`
	BlockedBy      Disc          `json:"blockedBy,omitempty"`
	ExtraTurn      Disc          `json:"extraTurn,omitempty"`
	MoveStartTime  int64         `json:"moveStartTime"`
	GameStartTime  int64         `json:"gameStartTime"`
	GameResults    []GameResult  `json:"gameResults"`
	Status         Status        `json:"status"`
	Winner         string        `json:"winner,omitempty"`
}

func (s *State) GameID() models.GameID { return models.GameConnect4 }
func (s *State) Phase() string         { return string(s.Status) }

func (s *State) clone() *State {
	c := *s
	c.Board = cloneBoard(s.Board)
	c.Moves = append([]Move(nil), s.Moves...)
	c.PowerUps = s.PowerUps.Clone()
	c.BlockedColumns = append([]int(nil), s.BlockedColumns...)
	c.GameResults = append([]GameResult(nil), s.GameResults...)
	return &c
}

// DiscOf returns the colour of playerID. The first seat plays Yellow.
func (s *State) DiscOf(playerID string) (Disc, bool) {
	switch s.Players.IndexOf(playerID) {
	case 0:
		return Yellow, true
	case 1:
		return Red, true
	}
	return Empty, false
}

func (s *State) PlayerFor(d Disc) string {
	if d == Yellow {
		return s.Players[0].ID
	}
	return s.Players[1].ID
}

func (s *State) CurrentPlayerID() string {
	return s.PlayerFor(s.CurrentPlayer)
}

func newBoard(rows, cols int) [][]Disc {
	b := make([][]Disc, rows)
	for i := range b {
		b[i] = make([]Disc, cols)
	}
	return b
}

func cloneBoard(b [][]Disc) [][]Disc {
	out := make([][]Disc, len(b))
	for i := range b {
		out[i] = append([]Disc(nil), b[i]...)
	}
	return out
}

func Initialize(seats game.Seats, cfg Config, deps game.Deps) (*State, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	rows, cols := cfg.Dimensions()
	now := deps.NowMillis()
	st := &State{
		Players:        seats,
		Config:         cfg,
		Board:          newBoard(rows, cols),
		CurrentPlayer:  Yellow,
		GameNumber:     1,
		Moves:          []Move{},
		PowerUps:       game.PowerUps{},
		BlockedColumns: []int{},
		MoveStartTime:  now,
		GameStartTime:  now,
		GameResults:    []GameResult{},
		Status:         StatusPlaying,
	}
	if cfg.PowerUpsEnabled {
		st.PowerUps = game.GrantPowerUps(seats, PowerUpRemoveDisc, PowerUpBlockColumn, PowerUpSwapColors, PowerUpExtraTurn)
	}
	return st, nil
}

func (s *State) checkActor(playerID string) (Disc, error) {
	if s.Status != StatusPlaying {
		return Empty, models.ErrNotPlaying
	}
	d, ok := s.DiscOf(playerID)
	if !ok {
		return Empty, models.ErrNotParticipant
	}
	if s.CurrentPlayer != d {
		return Empty, models.ErrNotYourTurn
	}
	return d, nil
}

func (s *State) columnFull(col int) bool {
	return s.Board[0][col] != Empty
}

type MoveResult struct {
	Move Move `json:"move"`
	game.Transition
}

// MakeMove drops the mover's disc into col.
func MakeMove(s *State, playerID string, col int, deps game.Deps) (*State, MoveResult, error) {
	disc, err := s.checkActor(playerID)
	if err != nil {
		return nil, MoveResult{}, err
	}
	_, cols := s.Config.Dimensions()
	if col < 0 || col >= cols {
		return nil, MoveResult{}, models.Validation("Invalid column")
	}
	if slices.Contains(s.BlockedColumns, col) {
		return nil, MoveResult{}, models.Validation("This column is blocked")
	}
	if s.columnFull(col) {
		return nil, MoveResult{}, models.Validation("Column is full")
	}

	now := deps.NowMillis()
	next := s.clone()
	row := len(next.Board) - 1
	for next.Board[row][col] != Empty {
		row--
	}
	next.Board[row][col] = disc
	mv := Move{Col: col, Row: row, Player: disc, Timestamp: now}
	next.Moves = append(next.Moves, mv)
	if len(next.BlockedColumns) > 0 && next.BlockedBy != disc {
		next.BlockedColumns = []int{}
		next.BlockedBy = Empty
	}

	res := MoveResult{Move: mv}
	if winsFrom(next.Board, row, col, disc) {
		res.Transition = next.finishGame(string(disc), now, false)
		return next, res, nil
	}
	if topRowFull(next.Board) {
		res.Transition = next.finishGame(Draw, now, false)
		return next, res, nil
	}
	if next.ExtraTurn == disc {
		next.ExtraTurn = Empty
	} else {
		next.CurrentPlayer = disc.opponent()
		res.TurnAdvances = true
	}
	next.MoveStartTime = now
	return next, res, nil
}

func (s *State) finishGame(winner string, now int64, timedOut bool) game.Transition {
	s.GameResults = append(s.GameResults, GameResult{
		GameNumber: s.GameNumber,
		Winner:     winner,
		Moves:      append([]Move(nil), s.Moves...),
		Duration:   now - s.GameStartTime,
		TimedOut:   timedOut,
	})
	switch winner {
	case string(Yellow):
		s.MatchScore.Yellow++
	case string(Red):
		s.MatchScore.Red++
	default:
		s.MatchScore.Draws++
	}
	s.Status = StatusGameOver
	s.Winner = winner
	s.BlockedColumns = []int{}
	s.BlockedBy = Empty
	s.ExtraTurn = Empty
	return game.Transition{GameOver: true, MatchOver: s.MatchWinner() != Empty}
}

func (s *State) MatchWinner() Disc {
	need := game.WinsNeeded(s.Config.BestOf)
	switch {
	case s.MatchScore.Yellow >= need:
		return Yellow
	case s.MatchScore.Red >= need:
		return Red
	}
	return Empty
}

type PowerUpResult struct {
	Type   string `json:"type"`
	Result string `json:"result"`
	game.Transition
}

// UsePowerUp consumes one of the mover's power-ups without passing the turn.
// Power-ups that rewrite the board are followed by a full winner scan; a line
// for the user of the power-up takes precedence.
func UsePowerUp(s *State, playerID, powerUp string, targetRow, targetCol *int, deps game.Deps) (*State, PowerUpResult, error) {
	disc, err := s.checkActor(playerID)
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
	rows, cols := s.Config.Dimensions()
	boardChanged := false

	switch powerUp {
	case PowerUpRemoveDisc:
		if targetRow == nil || targetCol == nil {
			return nil, PowerUpResult{}, models.Validation("Target position required for remove_disc power-up")
		}
		r, c := *targetRow, *targetCol
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return nil, PowerUpResult{}, models.Validation("Invalid target position")
		}
		if s.Board[r][c] != disc.opponent() {
			return nil, PowerUpResult{}, models.Validation("Can only remove opponent discs")
		}
		for row := r; row > 0; row-- {
			next.Board[row][c] = next.Board[row-1][c]
		}
		next.Board[0][c] = Empty
		res.Result = fmt.Sprintf("Removed disc at column %d", c)
		boardChanged = true
	case PowerUpBlockColumn:
		if targetCol == nil {
			return nil, PowerUpResult{}, models.Validation("Target column required for block_column power-up")
		}
		c := *targetCol
		if c < 0 || c >= cols {
			return nil, PowerUpResult{}, models.Validation("Invalid column")
		}
		if s.columnFull(c) {
			return nil, PowerUpResult{}, models.Validation("Cannot block a full column")
		}
		if !slices.Contains(next.BlockedColumns, c) {
			next.BlockedColumns = append(next.BlockedColumns, c)
		}
		next.BlockedBy = disc
		res.Result = fmt.Sprintf("Blocked column %d", c)
	case PowerUpSwapColors:
		for r := range next.Board {
			for c, cell := range next.Board[r] {
				if cell != Empty {
					next.Board[r][c] = cell.opponent()
				}
			}
		}
		res.Result = "Swapped all disc colors"
		boardChanged = true
	case PowerUpExtraTurn:
		next.ExtraTurn = disc
		res.Result = "Extra turn granted"
	default:
		return nil, PowerUpResult{}, models.Validation("Unknown power-up type %q", powerUp)
	}

	if boardChanged {
		now := deps.NowMillis()
		switch {
		case hasLine(next.Board, disc):
			res.Transition = next.finishGame(string(disc), now, false)
		case hasLine(next.Board, disc.opponent()):
			res.Transition = next.finishGame(string(disc.opponent()), now, false)
		}
	}
	return next, res, nil
}

// NextGame starts the next game or closes the match.
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
	rows, cols := s.Config.Dimensions()
	next.Board = newBoard(rows, cols)
	if s.GameNumber%2 == 0 {
		next.CurrentPlayer = Yellow
	} else {
		next.CurrentPlayer = Red
	}
	next.GameNumber++
	next.Moves = []Move{}
	next.BlockedColumns = []int{}
	next.BlockedBy = Empty
	next.ExtraTurn = Empty
	next.MoveStartTime = now
	next.GameStartTime = now
	next.Status = StatusPlaying
	next.Winner = ""
	return next, game.Transition{}, nil
}

func HasTimeLimitExceeded(s *State, now time.Time) bool {
	if s.Status != StatusPlaying || s.Config.TimeLimit == 0 {
		return false
	}
	return now.UnixMilli()-s.MoveStartTime > int64(s.Config.TimeLimit)*1000
}

// ForfeitOnTimeout awards the current game to the player not on move.
func ForfeitOnTimeout(s *State, deps game.Deps) (*State, game.Transition, error) {
	if !HasTimeLimitExceeded(s, deps.Clock.Now()) {
		return nil, game.Transition{}, models.Lifecycle("The move timer has not expired")
	}
	next := s.clone()
	tr := next.finishGame(string(s.CurrentPlayer.opponent()), deps.NowMillis(), true)
	return next, tr, nil
}

var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// winsFrom checks the four lines through (row, col) for four of d.
func winsFrom(board [][]Disc, row, col int, d Disc) bool {
	for _, dir := range directions {
		count := 1
		for _, sign := range []int{1, -1} {
			r, c := row+sign*dir[0], col+sign*dir[1]
			for r >= 0 && r < len(board) && c >= 0 && c < len(board[r]) && board[r][c] == d {
				count++
				r += sign * dir[0]
				c += sign * dir[1]
			}
		}
		if count >= 4 {
			return true
		}
	}
	return false
}

// hasLine scans the whole board for four of d.
func hasLine(board [][]Disc, d Disc) bool {
	for r := range board {
		for c := range board[r] {
			if board[r][c] == d && winsFrom(board, r, c, d) {
				return true
			}
		}
	}
	return false
}

func topRowFull(board [][]Disc) bool {
	for _, c := range board[0] {
		if c == Empty {
			return false
		}
	}
	return true
}

type Stats struct {
	TotalGames          int        `json:"totalGames"`
	AverageGameDuration int64      `json:"averageGameDuration"`
	MatchScore          MatchScore `json:"matchScore"`
	MatchWinner         *Disc      `json:"matchWinner"`
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

package connect4

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jason-s-yu/gamehub/internal/dependencies/mocks"
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seats = game.Seats{{ID: "y", Name: "Yara"}, {ID: "r", Name: "Rui"}}

func newDeps() (game.Deps, *mocks.MockClock) {
	clk := mocks.NewMockClock(time.Unix(1700000000, 0))
	return game.Deps{Random: mocks.NewMockRandom(), Clock: clk}, clk
}

func newGame(t *testing.T, cfg Config) (*State, game.Deps, *mocks.MockClock) {
	t.Helper()
	deps, clk := newDeps()
	st, err := Initialize(seats, cfg, deps)
	require.NoError(t, err)
	return st, deps, clk
}

func drop(t *testing.T, st *State, player string, col int, deps game.Deps) (*State, MoveResult) {
	t.Helper()
	next, res, err := MakeMove(st, player, col, deps)
	require.NoError(t, err)
	return next, res
}

// boardFrom parses rows of 'Y', 'R' and '.' into a board.
func boardFrom(rows ...string) [][]Disc {
	b := make([][]Disc, len(rows))
	for r, line := range rows {
		b[r] = make([]Disc, len(line))
		for c, ch := range line {
			switch ch {
			case 'Y':
				b[r][c] = Yellow
			case 'R':
				b[r][c] = Red
			}
		}
	}
	return b
}

func intp(i int) *int { return &i }

func TestVerticalWin(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())

	var res MoveResult
	for i := 0; i < 3; i++ {
		st, res = drop(t, st, "y", 0, deps)
		assert.True(t, res.TurnAdvances)
		st, _ = drop(t, st, "r", 1, deps)
	}
	st, res = drop(t, st, "y", 0, deps)

	assert.True(t, res.GameOver)
	assert.False(t, res.MatchOver)
	assert.Equal(t, 2, res.Move.Row)
	assert.Equal(t, StatusGameOver, st.Status)
	assert.Equal(t, "Yellow", st.Winner)
	assert.Equal(t, MatchScore{Yellow: 1}, st.MatchScore)
}

func TestHorizontalWin(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())
	for col := 0; col < 3; col++ {
		st, _ = drop(t, st, "y", col, deps)
		st, _ = drop(t, st, "r", col, deps)
	}
	st, res := drop(t, st, "y", 3, deps)
	assert.True(t, res.GameOver)
	assert.Equal(t, "Yellow", st.Winner)
}

func TestGravity(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())
	st, res := drop(t, st, "y", 4, deps)
	assert.Equal(t, 5, res.Move.Row)
	st, res = drop(t, st, "r", 4, deps)
	assert.Equal(t, 4, res.Move.Row)
	assert.Equal(t, Yellow, st.Board[5][4])
	assert.Equal(t, Red, st.Board[4][4])
}

func TestMoveValidation(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())

	_, _, err := MakeMove(st, "r", 0, deps)
	assert.ErrorIs(t, err, models.ErrNotYourTurn)
	_, _, err = MakeMove(st, "z", 0, deps)
	assert.ErrorIs(t, err, models.ErrNotParticipant)
	_, _, err = MakeMove(st, "y", 7, deps)
	assert.Equal(t, "Invalid column", models.PublicMessage(err))
	_, _, err = MakeMove(st, "y", -1, deps)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	for i := 0; i < 3; i++ {
		st, _ = drop(t, st, "y", 0, deps)
		st, _ = drop(t, st, "r", 0, deps)
	}
	_, _, err = MakeMove(st, "y", 0, deps)
	assert.Equal(t, "Column is full", models.PublicMessage(err))
}

func TestMakeMoveDoesNotMutateInput(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())
	next, _ := drop(t, st, "y", 3, deps)
	assert.Equal(t, Empty, st.Board[5][3])
	assert.Empty(t, st.Moves)
	assert.Equal(t, Yellow, next.Board[5][3])
}

func TestDrawWhenBoardFills(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())
	st.Board = boardFrom(
		"RYRYRR.",
		"YYRRRYR",
		"RRYRRRY",
		"YYYRYYY",
		"RYYYRYR",
		"RYRYRYR",
	)
	st, res := drop(t, st, "y", 6, deps)
	assert.True(t, res.GameOver)
	assert.Equal(t, Draw, st.Winner)
	assert.Equal(t, 1, st.MatchScore.Draws)
}

func TestInitializeValidation(t *testing.T) {
	deps, _ := newDeps()
	_, err := Initialize(seats, Config{BoardSize: "5x5"}, deps)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	_, err = Initialize(seats, Config{BestOf: 4}, deps)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	st, err := Initialize(seats, Config{BoardSize: "8x9"}, deps)
	require.NoError(t, err)
	assert.Len(t, st.Board, 8)
	assert.Len(t, st.Board[0], 9)
	assert.Equal(t, 3, st.Config.BestOf)
}

func TestBlockColumn(t *testing.T) {
	st, deps, _ := newGame(t, Config{PowerUpsEnabled: true})

	st, res, err := UsePowerUp(st, "y", PowerUpBlockColumn, nil, intp(3), deps)
	require.NoError(t, err)
	assert.False(t, res.TurnAdvances)
	assert.Equal(t, []int{3}, st.BlockedColumns)

	st, _ = drop(t, st, "y", 0, deps)
	assert.Equal(t, []int{3}, st.BlockedColumns)

	_, _, err = MakeMove(st, "r", 3, deps)
	assert.Equal(t, "This column is blocked", models.PublicMessage(err))

	st, _ = drop(t, st, "r", 1, deps)
	assert.Empty(t, st.BlockedColumns)
	st, _ = drop(t, st, "y", 3, deps)
	assert.Equal(t, Yellow, st.Board[5][3])

	_, _, err = UsePowerUp(st, "r", PowerUpBlockColumn, nil, intp(3), deps)
	require.NoError(t, err)
	_, _, err = UsePowerUp(st, "r", PowerUpBlockColumn, nil, nil, deps)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestRemoveDiscShiftsColumn(t *testing.T) {
	st, deps, _ := newGame(t, Config{PowerUpsEnabled: true})
	st, _ = drop(t, st, "y", 0, deps)
	st, _ = drop(t, st, "r", 0, deps)
	st, _ = drop(t, st, "y", 0, deps)

	_, _, err := UsePowerUp(st, "r", PowerUpRemoveDisc, intp(4), intp(0), deps)
	assert.Equal(t, "Can only remove opponent discs", models.PublicMessage(err))

	st, res, err := UsePowerUp(st, "r", PowerUpRemoveDisc, intp(5), intp(0), deps)
	require.NoError(t, err)
	assert.False(t, res.GameOver)
	assert.Equal(t, Red, st.Board[5][0])
	assert.Equal(t, Yellow, st.Board[4][0])
	assert.Equal(t, Empty, st.Board[3][0])
	assert.Equal(t, Red, st.CurrentPlayer)

	_, _, err = UsePowerUp(st, "r", PowerUpRemoveDisc, intp(4), intp(0), deps)
	assert.ErrorIs(t, err, models.ErrPowerUpUnavailable)
}

func TestRemoveDiscCanCompleteLine(t *testing.T) {
	st, deps, _ := newGame(t, Config{PowerUpsEnabled: true})
	st.Board = boardFrom(
		".......",
		".......",
		".......",
		".......",
		"...Y...",
		"YYYRRR.",
	)
	st, res, err := UsePowerUp(st, "y", PowerUpRemoveDisc, intp(5), intp(3), deps)
	require.NoError(t, err)
	assert.True(t, res.GameOver)
	assert.Equal(t, "Yellow", st.Winner)
}

func TestSwapColors(t *testing.T) {
	st, deps, _ := newGame(t, Config{PowerUpsEnabled: true})
	st, _ = drop(t, st, "y", 0, deps)
	st, _ = drop(t, st, "r", 1, deps)

	st, res, err := UsePowerUp(st, "y", PowerUpSwapColors, nil, nil, deps)
	require.NoError(t, err)
	assert.False(t, res.GameOver)
	assert.Equal(t, Red, st.Board[5][0])
	assert.Equal(t, Yellow, st.Board[5][1])
}

func TestExtraTurn(t *testing.T) {
	st, deps, _ := newGame(t, Config{PowerUpsEnabled: true})
	st, _, err := UsePowerUp(st, "y", PowerUpExtraTurn, nil, nil, deps)
	require.NoError(t, err)

	st, res := drop(t, st, "y", 0, deps)
	assert.False(t, res.TurnAdvances)
	assert.Equal(t, Yellow, st.CurrentPlayer)
	st, res = drop(t, st, "y", 1, deps)
	assert.True(t, res.TurnAdvances)
	assert.Equal(t, Red, st.CurrentPlayer)
}

func TestPowerUpsDisabled(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())
	_, _, err := UsePowerUp(st, "y", PowerUpExtraTurn, nil, nil, deps)
	assert.ErrorIs(t, err, models.ErrPowerUpsDisabled)
}

// winYellow plays a quick vertical Yellow win in column 0 from a fresh game.
func winYellow(t *testing.T, st *State, deps game.Deps) *State {
	t.Helper()
	if st.CurrentPlayer == Red {
		st, _ = drop(t, st, "r", 2, deps)
	}
	for i := 0; i < 3; i++ {
		st, _ = drop(t, st, "y", 0, deps)
		st, _ = drop(t, st, "r", 1, deps)
	}
	st, _ = drop(t, st, "y", 0, deps)
	require.Equal(t, "Yellow", st.Winner)
	return st
}

func TestBestOfThreeSeries(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())

	st = winYellow(t, st, deps)
	_, _, err := MakeMove(st, "r", 0, deps)
	assert.ErrorIs(t, err, models.ErrNotPlaying)

	st, tr, err := NextGame(st, deps)
	require.NoError(t, err)
	assert.False(t, tr.MatchOver)
	assert.Equal(t, 2, st.GameNumber)
	assert.Equal(t, Red, st.CurrentPlayer)
	assert.Empty(t, st.Moves)

	st = winYellow(t, st, deps)
	assert.Equal(t, Yellow, st.MatchWinner())

	st, tr, err = NextGame(st, deps)
	require.NoError(t, err)
	assert.True(t, tr.MatchOver)
	assert.Equal(t, StatusMatchOver, st.Status)

	stats := ComputeStats(st)
	assert.Equal(t, 2, stats.TotalGames)
	require.NotNil(t, stats.MatchWinner)
	assert.Equal(t, Yellow, *stats.MatchWinner)
}

func TestTimeoutForfeit(t *testing.T) {
	st, deps, clk := newGame(t, Config{TimeLimit: 10})

	_, _, err := ForfeitOnTimeout(st, deps)
	assert.Equal(t, models.KindLifecycle, models.KindOf(err))

	clk.Advance(11 * time.Second)
	assert.True(t, HasTimeLimitExceeded(st, clk.Now()))
	st, tr, err := ForfeitOnTimeout(st, deps)
	require.NoError(t, err)
	assert.True(t, tr.GameOver)
	assert.Equal(t, "Red", st.Winner)
	assert.True(t, st.GameResults[0].TimedOut)
}

func TestBoardEncodesEmptyAsNull(t *testing.T) {
	st, deps, _ := newGame(t, DefaultConfig())
	st, _ = drop(t, st, "y", 0, deps)
	raw, err := json.Marshal(st.Board[5][:2])
	require.NoError(t, err)
	assert.JSONEq(t, `["Yellow", null]`, string(raw))
}

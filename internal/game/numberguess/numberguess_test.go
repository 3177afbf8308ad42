package numberguess

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jason-s-yu/gamehub/internal/dependencies/mocks"
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seats = game.Seats{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}

func newDeps(target ...int) game.Deps {
	rnd := mocks.NewMockRandom()
	rnd.QueueIntn(target...)
	return game.Deps{Random: rnd, Clock: mocks.NewMockClock(time.Unix(1700000000, 0))}
}

func TestScenarioTargetSeven(t *testing.T) {
	// Intn(10) returning 6 puts the target at 1+6 = 7.
	deps := newDeps(6)
	st, err := Initialize(seats, Config{MinRange: 1, MaxRange: 10}, deps)
	require.NoError(t, err)
	require.Equal(t, 7, st.TargetNumber)
	assert.Equal(t, "a", st.CurrentTurn)

	st, res, err := MakeGuess(st, "a", 3, deps)
	require.NoError(t, err)
	assert.Equal(t, TooLow, res.Guess.Feedback)
	assert.True(t, res.TurnAdvances)
	assert.Equal(t, "b", st.CurrentTurn)

	_, _, err = MakeGuess(st, "a", 5, deps)
	require.Error(t, err)
	assert.Equal(t, models.KindAuthority, models.KindOf(err))

	st, res, err = MakeGuess(st, "b", 7, deps)
	require.NoError(t, err)
	assert.Equal(t, Correct, res.Guess.Feedback)
	assert.True(t, res.GameOver)
	assert.Equal(t, StatusFinished, st.Status)
	assert.Equal(t, "b", st.Winner)
}

func TestGuessDoesNotMutateInput(t *testing.T) {
	deps := newDeps(49)
	st, err := Initialize(seats, DefaultConfig(), deps)
	require.NoError(t, err)

	next, _, err := MakeGuess(st, "a", 10, deps)
	require.NoError(t, err)
	assert.Empty(t, st.Guesses)
	assert.Equal(t, "a", st.CurrentTurn)
	assert.Len(t, next.Guesses, 1)
}

func TestGuessValidation(t *testing.T) {
	deps := newDeps(0)
	st, err := Initialize(seats, Config{MinRange: 1, MaxRange: 10}, deps)
	require.NoError(t, err)

	_, _, err = MakeGuess(st, "a", 11, deps)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, _, err = MakeGuess(st, "zed", 3, deps)
	assert.Equal(t, models.KindAuthority, models.KindOf(err))

	_, err = Initialize(seats, Config{MinRange: 5, MaxRange: 5}, deps)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestRangeBounds(t *testing.T) {
	for _, cfg := range []Config{
		{MinRange: math.MinInt, MaxRange: math.MaxInt},
		{MinRange: 0, MaxRange: math.MaxInt},
		{MinRange: -RangeLimit - 1, MaxRange: 0},
	} {
		assert.NotPanics(t, func() {
			_, err := Initialize(seats, cfg, newDeps())
			assert.Equal(t, models.KindValidation, models.KindOf(err))
		})
	}

	st, err := Initialize(seats, Config{MinRange: -RangeLimit, MaxRange: RangeLimit}, newDeps(0))
	require.NoError(t, err)
	assert.Equal(t, -RangeLimit, st.TargetNumber)
}

func TestGuessAfterFinishIsRejected(t *testing.T) {
	deps := newDeps(0)
	st, err := Initialize(seats, Config{MinRange: 1, MaxRange: 10}, deps)
	require.NoError(t, err)

	st, _, err = MakeGuess(st, "a", 1, deps)
	require.NoError(t, err)
	require.Equal(t, StatusFinished, st.Status)

	_, _, err = MakeGuess(st, "b", 2, deps)
	assert.ErrorIs(t, err, models.ErrNotPlaying)
}

func TestViewRedactsTarget(t *testing.T) {
	deps := newDeps(41)
	st, err := Initialize(seats, DefaultConfig(), deps)
	require.NoError(t, err)

	hidden, err := json.Marshal(st.View(false))
	require.NoError(t, err)
	assert.NotContains(t, string(hidden), "targetNumber")

	plain, err := json.Marshal(st)
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "targetNumber")

	shown, err := json.Marshal(st.View(true))
	require.NoError(t, err)
	assert.Contains(t, string(shown), `"targetNumber":42`)
}

func TestComputeStats(t *testing.T) {
	deps := newDeps(4)
	st, err := Initialize(seats, Config{MinRange: 1, MaxRange: 10}, deps)
	require.NoError(t, err)
	st, _, _ = MakeGuess(st, "a", 2, deps)
	st, _, _ = MakeGuess(st, "b", 9, deps)
	st, _, _ = MakeGuess(st, "a", 5, deps)

	stats := ComputeStats(st)
	assert.Equal(t, 3, stats.TotalGuesses)
	assert.Equal(t, "a", stats.Winner)
	assert.Equal(t, 2, stats.Players[0].TotalGuesses)
	assert.Equal(t, 1, stats.Players[1].TotalGuesses)
}

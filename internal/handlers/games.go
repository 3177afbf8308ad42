package handlers

import (
	"encoding/json"
	"time"

	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/game/connect4"
	"github.com/jason-s-yu/gamehub/internal/game/hangman"
	"github.com/jason-s-yu/gamehub/internal/game/numberguess"
	"github.com/jason-s-yu/gamehub/internal/game/rps"
	"github.com/jason-s-yu/gamehub/internal/game/thisorthat"
	"github.com/jason-s-yu/gamehub/internal/game/tictactoe"
	"github.com/jason-s-yu/gamehub/internal/game/wouldyourather"
	"github.com/jason-s-yu/gamehub/internal/models"
)

// parseConfig overlays raw on def. An empty raw keeps def.
func parseConfig[C any](raw json.RawMessage, def C) (C, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}
	if err := json.Unmarshal(raw, &def); err != nil {
		return def, models.Validation("Invalid game config")
	}
	return def, nil
}

// newGameState starts the rule module named by gameID.
func newGameState(gameID models.GameID, seats game.Seats, raw json.RawMessage, deps game.Deps) (game.State, error) {
	switch gameID {
	case models.GameNumberGuessing:
		cfg, err := parseConfig(raw, numberguess.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(numberguess.Initialize(seats, cfg, deps))
	case models.GameWouldYouRather:
		cfg, err := parseConfig(raw, wouldyourather.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(wouldyourather.Initialize(seats, cfg, deps))
	case models.GameThisOrThat:
		cfg, err := parseConfig(raw, thisorthat.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(thisorthat.Initialize(seats, cfg, deps))
	case models.GameTicTacToe:
		cfg, err := parseConfig(raw, tictactoe.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(tictactoe.Initialize(seats, cfg, deps))
	case models.GameConnect4:
		cfg, err := parseConfig(raw, connect4.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(connect4.Initialize(seats, cfg, deps))
	case models.GameRPS:
		cfg, err := parseConfig(raw, rps.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(rps.Initialize(seats, cfg, deps))
	case models.GameHangman:
		cfg, err := parseConfig(raw, hangman.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return wrap(hangman.Initialize(seats, cfg, deps))
	}
	return nil, models.ErrUnknownGame
}

// wrap turns a typed constructor result into a State without leaking a typed
// nil through the interface.
func wrap[S game.State](st S, err error) (game.State, error) {
	if err != nil {
		return nil, err
	}
	return st, nil
}

// stateAs narrows st to the module type an action expects.
func stateAs[S game.State](st game.State) (S, error) {
	s, ok := st.(S)
	if !ok {
		var zero S
		return zero, models.Lifecycle("That action does not apply to %s", st.GameID())
	}
	return s, nil
}

// view is the broadcast form of st. Secrets stay hidden unless reveal is set.
func view(st game.State, reveal bool) interface{} {
	switch s := st.(type) {
	case *numberguess.State:
		return s.View(reveal)
	case *hangman.State:
		return s.View(reveal)
	case *wouldyourather.State:
		return s.View()
	case *thisorthat.State:
		return s.View()
	case *rps.State:
		return s.View()
	}
	return st
}

// seatsOf returns the two participants of st.
func seatsOf(st game.State) game.Seats {
	switch s := st.(type) {
	case *numberguess.State:
		return s.Players
	case *wouldyourather.State:
		return s.Players
	case *thisorthat.State:
		return s.Players
	case *tictactoe.State:
		return s.Players
	case *connect4.State:
		return s.Players
	case *rps.State:
		return s.Players
	case *hangman.State:
		return s.Players
	}
	return game.Seats{}
}

// moveDeadline is when the player on move forfeits, if the game has a move
// clock and is mid-game.
func moveDeadline(st game.State) (time.Time, bool) {
	var start int64
	var limit time.Duration
	switch s := st.(type) {
	case *tictactoe.State:
		if s.Status != tictactoe.StatusPlaying || s.Config.TimeLimit == 0 {
			return time.Time{}, false
		}
		start, limit = s.MoveStartTime, time.Duration(s.Config.TimeLimit)*time.Second
	case *connect4.State:
		if s.Status != connect4.StatusPlaying || s.Config.TimeLimit == 0 {
			return time.Time{}, false
		}
		start, limit = s.MoveStartTime, time.Duration(s.Config.TimeLimit)*time.Second
	case *thisorthat.State:
		if s.Status != thisorthat.StatusPlaying {
			return time.Time{}, false
		}
		start, limit = s.QuestionStartTime, s.Config.TimeLimit()
	default:
		return time.Time{}, false
	}
	return time.UnixMilli(start).Add(limit), true
}

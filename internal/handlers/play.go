// internal/handlers/play.go
package handlers

import (
	"context"
	"errors"

	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/game/connect4"
	"github.com/jason-s-yu/gamehub/internal/game/hangman"
	"github.com/jason-s-yu/gamehub/internal/game/numberguess"
	"github.com/jason-s-yu/gamehub/internal/game/rps"
	"github.com/jason-s-yu/gamehub/internal/game/thisorthat"
	"github.com/jason-s-yu/gamehub/internal/game/tictactoe"
	"github.com/jason-s-yu/gamehub/internal/game/wouldyourather"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/jason-s-yu/gamehub/internal/scheduler"
)

// errStale marks a scheduled task whose round has already moved on.
var errStale = errors.New("scheduled task no longer applies")

// playerAction wraps the checks shared by every in-game message: the room
// exists, the player belongs to this connection.
func (h *Hub) playerAction(conn *Connection, roomID, playerID string, fn func(r *models.Room) error) error {
	return h.withRoom(roomID, func(r *models.Room) error {
		if err := h.ownPlayer(conn, playerID); err != nil {
			return err
		}
		return fn(r)
	})
}

// Number guessing

func (h *Hub) handleMakeGuess(_ context.Context, conn *Connection, raw []byte) error {
	var m guessMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *numberguess.State) (*numberguess.State, numberguess.GuessResult, error) {
			return numberguess.MakeGuess(s, m.PlayerID, *m.Guess, h.deps)
		})
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{"type": "guess_result", "guess": res.Guess, "gameState": next.View(false)})
		h.record(r.ID, r.GameID, m.PlayerID, "make_guess", map[string]interface{}{"guess": res.Guess.Number, "feedback": res.Guess.Feedback})
		if res.GameOver {
			room := h.finishRoom(r.ID)
			h.broadcast(r.ID, Message{
				"type":         "game_finished",
				"winner":       next.Winner,
				"targetNumber": next.TargetNumber,
				"gameState":    next.View(true),
				"stats":        numberguess.ComputeStats(next),
				"room":         room,
			})
			h.record(r.ID, r.GameID, next.Winner, "game_finished", nil)
			return nil
		}
		if res.TurnAdvances {
			h.broadcast(r.ID, Message{"type": "turn_changed", "currentTurn": next.CurrentTurn, "gameState": next.View(false)})
		}
		return nil
	})
}

// Would you rather

type wyrSubmit struct {
	choice   wouldyourather.ChoiceResult
	revealed *wouldyourather.RoundResult
}

func (h *Hub) handleSubmitChoice(_ context.Context, conn *Connection, raw []byte) error {
	var m choiceMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *wouldyourather.State) (*wouldyourather.State, wyrSubmit, error) {
			chosen, cr, err := wouldyourather.RecordChoice(s, m.PlayerID, m.Choice, h.deps)
			if err != nil || !cr.BothChosen {
				return chosen, wyrSubmit{choice: cr}, err
			}
			revealed, rr, err := wouldyourather.Reveal(chosen)
			return revealed, wyrSubmit{choice: cr, revealed: &rr}, err
		})
		if err != nil {
			return err
		}
		conn.Send(Message{"type": "choice_submitted", "playerId": m.PlayerID, "round": next.CurrentRound})
		h.record(r.ID, r.GameID, m.PlayerID, "submit_choice", map[string]interface{}{"round": next.CurrentRound, "choice": m.Choice})
		if res.revealed == nil {
			return nil
		}
		h.broadcast(r.ID, Message{"type": "choices_revealed", "roundResult": res.revealed, "gameState": next.View()})
		round := next.CurrentRound
		h.schedule(r.ID, scheduler.KindAutoAdvance, h.opts.WouldYouRatherAdvanceDelay, func(r *models.Room) {
			if err := h.advanceWouldYouRather(r, round); err != nil && !isQuiet(err) {
				h.logger.Warnf("Room %s: auto-advance failed: %v", r.ID, err)
			}
		})
		return nil
	})
}

// advanceWouldYouRather leaves the reveal of round. The caller holds the
// room lock.
func (h *Hub) advanceWouldYouRather(r *models.Room, round int) error {
	next, tr, err := update(h, r.ID, func(s *wouldyourather.State) (*wouldyourather.State, game.Transition, error) {
		if s.CurrentRound != round {
			return nil, game.Transition{}, errStale
		}
		return wouldyourather.NextQuestion(s, h.deps)
	})
	if err != nil {
		return err
	}
	if tr.GameOver {
		room := h.finishRoom(r.ID)
		h.broadcast(r.ID, Message{"type": "game_finished", "gameState": next.View(), "stats": wouldyourather.ComputeStats(next), "room": room})
		h.record(r.ID, r.GameID, "", "game_finished", nil)
		return nil
	}
	h.broadcast(r.ID, Message{"type": "next_question", "round": next.CurrentRound, "gameState": next.View()})
	return nil
}

// handleNextQuestion skips the remaining reveal delay for either quiz game.
func (h *Hub) handleNextQuestion(_ context.Context, conn *Connection, raw []byte) error {
	var m roomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(r *models.Room) error {
		if err := member(conn, r.ID); err != nil {
			return err
		}
		st, ok := h.games.Get(r.ID)
		if !ok {
			return models.ErrGameNotFound
		}
		switch s := st.(type) {
		case *wouldyourather.State:
			if s.Status != wouldyourather.StatusRevealing {
				return models.Lifecycle("The current round has not been revealed yet")
			}
			h.cancelAdvance(r.ID)
			return h.advanceWouldYouRather(r, s.CurrentRound)
		case *thisorthat.State:
			if s.Status != thisorthat.StatusRevealing {
				return models.Lifecycle("The current round is not complete yet")
			}
			h.cancelAdvance(r.ID)
			return h.advanceThisOrThat(r, s.CurrentRound)
		}
		return models.Lifecycle("That action does not apply to %s", st.GameID())
	})
}

// This or that

type totSubmit struct {
	choice    thisorthat.ChoiceResult
	completed *thisorthat.RoundResult
}

func (h *Hub) handleThisOrThatChoice(_ context.Context, conn *Connection, raw []byte) error {
	var m choiceMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *thisorthat.State) (*thisorthat.State, totSubmit, error) {
			chosen, cr, err := thisorthat.RecordChoice(s, m.PlayerID, m.Choice, h.deps)
			if err != nil || !cr.BothChosen {
				return chosen, totSubmit{choice: cr}, err
			}
			done, rr, err := thisorthat.CompleteRound(chosen, h.deps)
			return done, totSubmit{choice: cr, completed: &rr}, err
		})
		if err != nil {
			return err
		}
		conn.Send(Message{"type": "this_or_that_choice_submitted", "playerId": m.PlayerID, "round": next.CurrentRound})
		h.record(r.ID, r.GameID, m.PlayerID, "submit_this_or_that_choice", map[string]interface{}{"round": next.CurrentRound, "choice": m.Choice})
		if res.completed != nil {
			h.thisOrThatRoundComplete(r, next, *res.completed)
		}
		return nil
	})
}

// thisOrThatRoundComplete announces a closed round and queues the next one.
func (h *Hub) thisOrThatRoundComplete(r *models.Room, next *thisorthat.State, rr thisorthat.RoundResult) {
	h.sched.Cancel(scheduler.Key{RoomID: r.ID, Kind: scheduler.KindMoveTimeout})
	h.broadcast(r.ID, Message{"type": "this_or_that_round_complete", "roundResult": rr, "gameState": next.View()})
	round := next.CurrentRound
	h.schedule(r.ID, scheduler.KindAutoAdvance, h.opts.ThisOrThatAdvanceDelay, func(r *models.Room) {
		if err := h.advanceThisOrThat(r, round); err != nil && !isQuiet(err) {
			h.logger.Warnf("Room %s: auto-advance failed: %v", r.ID, err)
		}
	})
}

func (h *Hub) advanceThisOrThat(r *models.Room, round int) error {
	next, tr, err := update(h, r.ID, func(s *thisorthat.State) (*thisorthat.State, game.Transition, error) {
		if s.CurrentRound != round {
			return nil, game.Transition{}, errStale
		}
		return thisorthat.NextQuestion(s, h.deps)
	})
	if err != nil {
		return err
	}
	if tr.GameOver {
		room := h.finishRoom(r.ID)
		h.broadcast(r.ID, Message{"type": "game_finished", "gameState": next.View(), "stats": thisorthat.ComputeStats(next), "room": room})
		h.record(r.ID, r.GameID, "", "game_finished", nil)
		return nil
	}
	h.broadcast(r.ID, Message{"type": "this_or_that_auto_next", "round": next.CurrentRound, "gameState": next.View()})
	h.armMoveTimer(r.ID, next)
	return nil
}

// Board games

func (h *Hub) handleMakeMove(_ context.Context, conn *Connection, raw []byte) error {
	var m moveMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *tictactoe.State) (*tictactoe.State, tictactoe.MoveResult, error) {
			return tictactoe.MakeMove(s, m.PlayerID, *m.Row, *m.Col, h.deps)
		})
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{"type": "move_made", "playerId": m.PlayerID, "move": res.Move, "turnAdvances": res.TurnAdvances, "gameState": next})
		h.record(r.ID, r.GameID, m.PlayerID, "make_move", map[string]interface{}{"row": *m.Row, "col": *m.Col})
		h.afterTicTacToe(r, next, res.Transition)
		return nil
	})
}

// afterTicTacToe handles the end of a game or re-arms the move clock.
func (h *Hub) afterTicTacToe(r *models.Room, next *tictactoe.State, tr game.Transition) {
	if !tr.GameOver {
		h.armMoveTimer(r.ID, next)
		return
	}
	h.sched.Cancel(scheduler.Key{RoomID: r.ID, Kind: scheduler.KindMoveTimeout})
	h.broadcast(r.ID, Message{
		"type":       "tic_tac_toe_game_over",
		"winner":     next.Winner,
		"winnerId":   next.PlayerFor(tictactoe.Mark(next.Winner)),
		"matchScore": next.MatchScore,
		"matchOver":  tr.MatchOver,
		"gameState":  next,
	})
	h.record(r.ID, r.GameID, next.PlayerFor(tictactoe.Mark(next.Winner)), "tic_tac_toe_game_over", map[string]interface{}{"winner": next.Winner})
	if tr.MatchOver {
		h.closeTicTacToeMatch(r)
	}
}

// closeTicTacToeMatch moves a decided series to match_over.
func (h *Hub) closeTicTacToeMatch(r *models.Room) {
	closed, _, err := update(h, r.ID, func(s *tictactoe.State) (*tictactoe.State, game.Transition, error) {
		return tictactoe.NextGame(s, h.deps)
	})
	if err != nil {
		h.logger.Warnf("Room %s: failed to close match: %v", r.ID, err)
		return
	}
	h.matchOver(r, closed, string(closed.MatchWinner()), closed.PlayerFor(closed.MatchWinner()), tictactoe.ComputeStats(closed))
}

func (h *Hub) matchOver(r *models.Room, st game.State, winner, winnerID string, stats interface{}) {
	room := h.finishRoom(r.ID)
	h.broadcast(r.ID, Message{"type": "match_over", "winner": winner, "winnerId": winnerID, "stats": stats, "gameState": st, "room": room})
	h.record(r.ID, r.GameID, winnerID, "match_over", map[string]interface{}{"winner": winner})
}

func (h *Hub) handleConnect4Move(_ context.Context, conn *Connection, raw []byte) error {
	var m columnMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *connect4.State) (*connect4.State, connect4.MoveResult, error) {
			return connect4.MakeMove(s, m.PlayerID, *m.Col, h.deps)
		})
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{"type": "connect_4_move_made", "playerId": m.PlayerID, "move": res.Move, "turnAdvances": res.TurnAdvances, "gameState": next})
		h.record(r.ID, r.GameID, m.PlayerID, "connect_4_make_move", map[string]interface{}{"col": *m.Col})
		h.afterConnect4(r, next, res.Transition)
		return nil
	})
}

func (h *Hub) afterConnect4(r *models.Room, next *connect4.State, tr game.Transition) {
	if !tr.GameOver {
		h.armMoveTimer(r.ID, next)
		return
	}
	h.sched.Cancel(scheduler.Key{RoomID: r.ID, Kind: scheduler.KindMoveTimeout})
	winnerID := next.PlayerFor(connect4.Disc(next.Winner))
	h.broadcast(r.ID, Message{
		"type":       "connect_4_game_over",
		"winner":     next.Winner,
		"winnerId":   winnerID,
		"matchScore": next.MatchScore,
		"matchOver":  tr.MatchOver,
		"gameState":  next,
	})
	h.record(r.ID, r.GameID, winnerID, "connect_4_game_over", map[string]interface{}{"winner": next.Winner})
	if !tr.MatchOver {
		return
	}
	closed, _, err := update(h, r.ID, func(s *connect4.State) (*connect4.State, game.Transition, error) {
		return connect4.NextGame(s, h.deps)
	})
	if err != nil {
		h.logger.Warnf("Room %s: failed to close match: %v", r.ID, err)
		return
	}
	h.matchOver(r, closed, string(closed.MatchWinner()), closed.PlayerFor(closed.MatchWinner()), connect4.ComputeStats(closed))
}

func (h *Hub) handleUsePowerUp(_ context.Context, conn *Connection, raw []byte) error {
	var m powerUpMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		st, ok := h.games.Get(r.ID)
		if !ok {
			return models.ErrGameNotFound
		}
		payload := map[string]interface{}{"powerUpType": m.PowerUpType}
		switch st.(type) {
		case *tictactoe.State:
			var target *tictactoe.Position
			if m.TargetRow != nil && m.TargetCol != nil {
				target = &tictactoe.Position{Row: *m.TargetRow, Col: *m.TargetCol}
			}
			next, res, err := update(h, r.ID, func(s *tictactoe.State) (*tictactoe.State, tictactoe.PowerUpResult, error) {
				return tictactoe.UsePowerUp(s, m.PlayerID, m.PowerUpType, target, h.deps)
			})
			if err != nil {
				return err
			}
			h.broadcast(r.ID, Message{"type": "power_up_used", "playerId": m.PlayerID, "powerUpType": m.PowerUpType, "result": res.Result, "gameState": next})
			h.record(r.ID, r.GameID, m.PlayerID, "use_power_up", payload)
			if res.GameOver {
				h.afterTicTacToe(r, next, res.Transition)
			}
			return nil
		case *connect4.State:
			next, res, err := update(h, r.ID, func(s *connect4.State) (*connect4.State, connect4.PowerUpResult, error) {
				return connect4.UsePowerUp(s, m.PlayerID, m.PowerUpType, m.TargetRow, m.TargetCol, h.deps)
			})
			if err != nil {
				return err
			}
			h.broadcast(r.ID, Message{"type": "power_up_used", "playerId": m.PlayerID, "powerUpType": m.PowerUpType, "result": res.Result, "gameState": next})
			h.record(r.ID, r.GameID, m.PlayerID, "use_power_up", payload)
			if res.GameOver {
				h.afterConnect4(r, next, res.Transition)
			}
			return nil
		case *rps.State:
			if m.PowerUpType != rps.PowerUpReveal {
				return models.Validation("%s is used together with rps_submit_choice", m.PowerUpType)
			}
			_, opp, err := update(h, r.ID, func(s *rps.State) (*rps.State, *rps.Choice, error) {
				return rps.UseReveal(s, m.PlayerID)
			})
			if err != nil {
				return err
			}
			conn.Send(Message{"type": "rps_reveal", "opponentChoice": opp})
			h.record(r.ID, r.GameID, m.PlayerID, "use_power_up", payload)
			return nil
		case *hangman.State:
			return models.Validation("Hangman power-ups are used together with hangman_guess_letter")
		}
		return models.Lifecycle("Power-ups are not available in %s", st.GameID())
	})
}

func (h *Hub) handleNextGameInSeries(_ context.Context, conn *Connection, raw []byte) error {
	var m roomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(r *models.Room) error {
		if err := member(conn, r.ID); err != nil {
			return err
		}
		st, ok := h.games.Get(r.ID)
		if !ok {
			return models.ErrGameNotFound
		}
		switch cur := st.(type) {
		case *tictactoe.State:
			next, tr, err := update(h, r.ID, func(s *tictactoe.State) (*tictactoe.State, game.Transition, error) {
				return tictactoe.NextGame(s, h.deps)
			})
			if err != nil {
				return err
			}
			if tr.MatchOver {
				h.matchOver(r, next, string(next.MatchWinner()), next.PlayerFor(next.MatchWinner()), tictactoe.ComputeStats(next))
				return nil
			}
			h.broadcast(r.ID, Message{"type": "game_started", "room": r, "gameState": next})
			h.armMoveTimer(r.ID, next)
		case *connect4.State:
			next, tr, err := update(h, r.ID, func(s *connect4.State) (*connect4.State, game.Transition, error) {
				return connect4.NextGame(s, h.deps)
			})
			if err != nil {
				return err
			}
			if tr.MatchOver {
				h.matchOver(r, next, string(next.MatchWinner()), next.PlayerFor(next.MatchWinner()), connect4.ComputeStats(next))
				return nil
			}
			h.broadcast(r.ID, Message{"type": "game_started", "room": r, "gameState": next})
			h.armMoveTimer(r.ID, next)
		case *rps.State:
			h.cancelAdvance(r.ID)
			return h.nextRPSRound(r, cur.CurrentRound)
		default:
			return models.Lifecycle("%s has no series", st.GameID())
		}
		h.record(r.ID, r.GameID, "", "next_game_in_series", nil)
		return nil
	})
}

// Rock paper scissors

func (h *Hub) handleRPSChoice(_ context.Context, conn *Connection, raw []byte) error {
	var m rpsChoiceMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *rps.State) (*rps.State, rps.SubmitResult, error) {
			return rps.SubmitChoice(s, m.PlayerID, rps.Choice(m.Choice), m.PowerUpType, h.deps)
		})
		if err != nil {
			return err
		}
		conn.Send(Message{"type": "rps_choice_submitted", "playerId": m.PlayerID, "round": next.CurrentRound, "powerUpType": m.PowerUpType})
		h.record(r.ID, r.GameID, m.PlayerID, "rps_submit_choice", map[string]interface{}{"round": next.CurrentRound, "choice": m.Choice, "powerUpType": m.PowerUpType})
		if !res.BothSubmitted {
			return nil
		}
		h.broadcast(r.ID, Message{"type": "rps_round_complete", "round": res.Round, "matchScore": next.MatchScore, "gameState": next.View()})
		if res.MatchOver {
			stats := rps.ComputeStats(next)
			room := h.finishRoom(r.ID)
			h.broadcast(r.ID, Message{"type": "rps_match_over", "winner": next.Winner, "winnerId": rpsWinnerID(next), "stats": stats, "gameState": next.View(), "room": room})
			h.record(r.ID, r.GameID, rpsWinnerID(next), "rps_match_over", map[string]interface{}{"winner": next.Winner})
			return nil
		}
		round := next.CurrentRound
		h.schedule(r.ID, scheduler.KindAutoAdvance, h.opts.RPSAdvanceDelay, func(r *models.Room) {
			if err := h.nextRPSRound(r, round); err != nil && !isQuiet(err) {
				h.logger.Warnf("Room %s: auto-advance failed: %v", r.ID, err)
			}
		})
		return nil
	})
}

func (h *Hub) nextRPSRound(r *models.Room, round int) error {
	next, _, err := update(h, r.ID, func(s *rps.State) (*rps.State, struct{}, error) {
		if s.CurrentRound != round {
			return nil, struct{}{}, errStale
		}
		n, err := rps.NextRound(s, h.deps)
		return n, struct{}{}, err
	})
	if err != nil {
		return err
	}
	h.broadcast(r.ID, Message{"type": "game_started", "room": r, "gameState": next.View()})
	return nil
}

// rpsWinnerID maps the Player1/Player2 label to a player id.
func rpsWinnerID(s *rps.State) string {
	switch s.Winner {
	case rps.Player1:
		return s.Players[0].ID
	case rps.Player2:
		return s.Players[1].ID
	}
	return ""
}

// Hangman

func (h *Hub) handleSetWord(_ context.Context, conn *Connection, raw []byte) error {
	var m setWordMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, _, err := update(h, r.ID, func(s *hangman.State) (*hangman.State, struct{}, error) {
			n, err := hangman.SetWord(s, m.PlayerID, m.Word, h.deps)
			return n, struct{}{}, err
		})
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{"type": "hangman_word_set", "playerId": m.PlayerID, "gameState": next.View(false)})
		h.record(r.ID, r.GameID, m.PlayerID, "hangman_set_word", map[string]interface{}{"length": len(next.Word)})
		return nil
	})
}

func (h *Hub) handleGuessLetter(_ context.Context, conn *Connection, raw []byte) error {
	var m guessLetterMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.playerAction(conn, m.RoomID, m.PlayerID, func(r *models.Room) error {
		next, res, err := update(h, r.ID, func(s *hangman.State) (*hangman.State, hangman.GuessResult, error) {
			return hangman.GuessLetter(s, m.PlayerID, m.Letter, m.PowerUpType, h.deps)
		})
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{
			"type":        "hangman_letter_guessed",
			"playerId":    m.PlayerID,
			"letter":      res.Guess.Letter,
			"correct":     res.Guess.Correct,
			"revealed":    res.Revealed,
			"powerUpType": m.PowerUpType,
			"maskedWord":  next.MaskedWord(),
			"gameState":   next.View(false),
		})
		h.record(r.ID, r.GameID, m.PlayerID, "hangman_guess_letter", map[string]interface{}{"letter": res.Guess.Letter, "correct": res.Guess.Correct})
		if res.GameOver {
			room := h.finishRoom(r.ID)
			h.broadcast(r.ID, Message{
				"type":      "hangman_game_over",
				"winner":    next.Winner,
				"word":      next.Word,
				"stats":     hangman.ComputeStats(next),
				"gameState": next.View(true),
				"room":      room,
			})
			h.record(r.ID, r.GameID, m.PlayerID, "hangman_game_over", map[string]interface{}{"status": next.Status})
		}
		return nil
	})
}

// Move clocks

// armMoveTimer schedules the forfeit or round expiry for st's clock, or
// clears it when st has none running.
func (h *Hub) armMoveTimer(roomID string, st game.State) {
	deadline, ok := moveDeadline(st)
	if !ok {
		h.sched.Cancel(scheduler.Key{RoomID: roomID, Kind: scheduler.KindMoveTimeout})
		return
	}
	delay := deadline.Sub(h.deps.Clock.Now()) + timeoutSlack
	h.schedule(roomID, scheduler.KindMoveTimeout, delay, h.onMoveTimeout)
}

// onMoveTimeout applies the time-out transition if the clock really ran out.
// A move made since the task was armed re-armed it, so a fresh clock is left
// alone.
func (h *Hub) onMoveTimeout(r *models.Room) {
	st, ok := h.games.Get(r.ID)
	if !ok {
		return
	}
	now := h.deps.Clock.Now()
	switch s := st.(type) {
	case *tictactoe.State:
		if !tictactoe.HasTimeLimitExceeded(s, now) {
			return
		}
		loser := s.CurrentPlayerID()
		next, tr, err := update(h, r.ID, func(s *tictactoe.State) (*tictactoe.State, game.Transition, error) {
			return tictactoe.ForfeitOnTimeout(s, h.deps)
		})
		if err != nil {
			h.logger.Warnf("Room %s: forfeit failed: %v", r.ID, err)
			return
		}
		h.logger.Infof("Room %s: player %s ran out of time", r.ID, loser)
		h.broadcast(r.ID, Message{"type": "move_timeout", "playerId": loser})
		h.afterTicTacToe(r, next, tr)
	case *connect4.State:
		if !connect4.HasTimeLimitExceeded(s, now) {
			return
		}
		loser := s.CurrentPlayerID()
		next, tr, err := update(h, r.ID, func(s *connect4.State) (*connect4.State, game.Transition, error) {
			return connect4.ForfeitOnTimeout(s, h.deps)
		})
		if err != nil {
			h.logger.Warnf("Room %s: forfeit failed: %v", r.ID, err)
			return
		}
		h.logger.Infof("Room %s: player %s ran out of time", r.ID, loser)
		h.broadcast(r.ID, Message{"type": "move_timeout", "playerId": loser})
		h.afterConnect4(r, next, tr)
	case *thisorthat.State:
		if !thisorthat.HasTimeLimitExceeded(s, now) {
			return
		}
		next, rr, err := update(h, r.ID, func(s *thisorthat.State) (*thisorthat.State, thisorthat.RoundResult, error) {
			return thisorthat.ExpireRound(s, h.deps)
		})
		if err != nil {
			h.logger.Warnf("Room %s: round expiry failed: %v", r.ID, err)
			return
		}
		h.thisOrThatRoundComplete(r, next, rr)
	}
}

// isQuiet reports errors a scheduled task hits when the room moved on.
func isQuiet(err error) bool {
	return errors.Is(err, errStale) || errors.Is(err, models.ErrGameNotFound) || models.KindOf(err) == models.KindLifecycle
}

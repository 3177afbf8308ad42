package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/gamehub/internal/auth"
	"github.com/jason-s-yu/gamehub/internal/cache"
	"github.com/jason-s-yu/gamehub/internal/database"
	"github.com/jason-s-yu/gamehub/internal/dependencies/mocks"
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/game/hangman"
	"github.com/jason-s-yu/gamehub/internal/game/numberguess"
	"github.com/jason-s-yu/gamehub/internal/game/rps"
	"github.com/jason-s-yu/gamehub/internal/game/wouldyourather"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/jason-s-yu/gamehub/internal/room"
	"github.com/jason-s-yu/gamehub/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	database.PasswordParams = &auth.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

type testEnv struct {
	hub   *Hub
	dir   *room.Directory
	games *game.Store
	sched *scheduler.ManualScheduler
	rnd   *mocks.MockRandom
	clk   *mocks.MockClock
	users *database.MemoryUserStore
	mr    *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mr := miniredis.RunT(t)
	rdb, err := cache.Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	users := database.NewMemoryUserStore()
	rnd := mocks.NewMockRandom()
	clk := mocks.NewMockClock(time.Unix(1700000000, 0))
	dir := room.NewDirectory(database.NewMemoryRoomRegistry(users), rnd, clk, logger)
	games := game.NewStore()
	sched := scheduler.NewManualScheduler()
	hub := NewHub(dir, games, sched, cache.NewRedisActionLog(rdb, ""), users, game.Deps{Random: rnd, Clock: clk}, DefaultOptions(), logger)
	return &testEnv{hub: hub, dir: dir, games: games, sched: sched, rnd: rnd, clk: clk, users: users, mr: mr}
}

// connect registers a session with a large queue and no flood limit.
func (e *testEnv) connect(id, userID string) *Connection {
	c := &Connection{
		ID:      id,
		UserID:  userID,
		Remote:  "test",
		OutChan: make(chan Message, 1024),
		limiter: rate.NewLimiter(rate.Inf, 0),
		players: make(map[string]string),
	}
	e.hub.Register(c)
	return c
}

func (e *testEnv) send(c *Connection, typ string, fields map[string]interface{}) {
	msg := map[string]interface{}{"type": typ}
	for k, v := range fields {
		msg[k] = v
	}
	raw, _ := json.Marshal(msg)
	e.hub.HandleMessage(context.Background(), c, raw)
}

// expect skips queued frames until one of type typ turns up.
func expect(t *testing.T, c *Connection, typ string) Message {
	t.Helper()
	for {
		select {
		case msg, ok := <-c.OutChan:
			if !ok {
				t.Fatalf("connection %s closed before %s arrived", c.ID, typ)
				return nil
			}
			if msg["type"] == typ {
				return msg
			}
		default:
			t.Fatalf("connection %s never received %s", c.ID, typ)
			return nil
		}
	}
}

func expectError(t *testing.T, c *Connection, kind models.ErrorKind) Message {
	t.Helper()
	msg := expect(t, c, "error")
	assert.Equal(t, kind, msg["code"], "message: %v", msg["message"])
	return msg
}

func drain(c *Connection) []Message {
	var out []Message
	for {
		select {
		case msg := <-c.OutChan:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func countType(msgs []Message, typ string) int {
	n := 0
	for _, m := range msgs {
		if m["type"] == typ {
			n++
		}
	}
	return n
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

type table struct {
	roomID string
	a, b   *Connection
	pa, pb string
}

// twoPlayerRoom has Alice create a room with the given code and Bob join it.
func (e *testEnv) twoPlayerRoom(t *testing.T, gameID models.GameID, code string) table {
	t.Helper()
	e.rnd.QueueString(code)
	a := e.connect("conn-a-"+code, "")
	b := e.connect("conn-b-"+code, "")

	e.send(a, "create_room", map[string]interface{}{"playerName": "Alice", "gameId": gameID})
	created := expect(t, a, "room_created")
	roomID := created["room"].(*models.Room).ID
	require.Equal(t, code, roomID)

	e.send(b, "join_room", map[string]interface{}{"roomId": roomID, "playerName": "Bob"})
	joined := expect(t, b, "room_joined")
	require.Equal(t, joined["playerId"], expect(t, a, "player_joined")["player"].(models.Player).ID)
	drain(a)
	drain(b)
	return table{roomID: roomID, a: a, b: b, pa: created["playerId"].(string), pb: joined["playerId"].(string)}
}

func (e *testEnv) start(t *testing.T, tb table, config map[string]interface{}) Message {
	t.Helper()
	e.send(tb.a, "start_game", map[string]interface{}{"roomId": tb.roomID, "config": config})
	msg := expect(t, tb.a, "game_started")
	drain(tb.a)
	drain(tb.b)
	return msg
}

func TestNumberGuessingOverTheHub(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameNumberGuessing, "NUMB01")

	e.rnd.QueueIntn(6) // target 7
	started := e.start(t, tb, map[string]interface{}{"minRange": 1, "maxRange": 10})
	assert.NotContains(t, toJSON(t, started), "targetNumber")

	e.send(tb.a, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "guess": 3})
	res := expect(t, tb.b, "guess_result")
	assert.Equal(t, numberguess.TooLow, res["guess"].(numberguess.Guess).Feedback)
	assert.NotContains(t, toJSON(t, res), "targetNumber")
	turn := expect(t, tb.b, "turn_changed")
	assert.Equal(t, tb.pb, turn["currentTurn"])

	e.send(tb.a, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "guess": 5})
	expectError(t, tb.a, models.KindAuthority)

	e.send(tb.b, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "guess": 7})
	done := expect(t, tb.a, "game_finished")
	assert.Equal(t, tb.pb, done["winner"])
	assert.Equal(t, 7, done["targetNumber"])
	assert.Contains(t, toJSON(t, done["gameState"]), `"targetNumber":7`)

	r, ok := e.dir.GetRoom(tb.roomID)
	require.True(t, ok)
	assert.Equal(t, models.RoomFinished, r.Status)
}

func TestActionsArePublishedInOrder(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameNumberGuessing, "LOGS01")
	e.rnd.QueueIntn(6)
	e.start(t, tb, map[string]interface{}{"minRange": 1, "maxRange": 10})
	e.send(tb.a, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "guess": 3})

	items, err := e.mr.List(cache.DefaultQueueName)
	require.NoError(t, err)
	var types []string
	for i, item := range items {
		var a models.RoomAction
		require.NoError(t, json.Unmarshal([]byte(item), &a))
		assert.Equal(t, tb.roomID, a.RoomID)
		assert.Equal(t, int64(i+1), a.ActionIndex)
		types = append(types, a.ActionType)
	}
	assert.Equal(t, []string{"room_created", "player_joined", "game_started", "make_guess"}, types)
}

func TestGuessForSomeoneElsesPlayerIsRejected(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameNumberGuessing, "OWNR01")
	e.rnd.QueueIntn(6)
	e.start(t, tb, map[string]interface{}{"minRange": 1, "maxRange": 10})

	intruder := e.connect("intruder", "")
	e.send(intruder, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "guess": 3})
	msg := expectError(t, intruder, models.KindAuthority)
	assert.Equal(t, models.ErrNotYourPlayer.Message, msg["message"])

	st, _ := e.games.Get(tb.roomID)
	assert.Empty(t, st.(*numberguess.State).Guesses)
}

func TestConcurrentGuessesKeepOneHistory(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameNumberGuessing, "RACE01")
	e.rnd.QueueIntn(99) // target 100
	e.start(t, tb, map[string]interface{}{"minRange": 1, "maxRange": 100})

	const perPlayer = 40
	var wg sync.WaitGroup
	for _, p := range []struct {
		conn *Connection
		id   string
	}{{tb.a, tb.pa}, {tb.b, tb.pb}} {
		wg.Add(1)
		go func(c *Connection, pid string) {
			defer wg.Done()
			for i := 1; i <= perPlayer; i++ {
				e.send(c, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": pid, "guess": i})
			}
		}(p.conn, p.id)
	}
	wg.Wait()

	st, ok := e.games.Get(tb.roomID)
	require.True(t, ok)
	guesses := st.(*numberguess.State).Guesses
	for i := range guesses {
		if i == 0 {
			assert.Equal(t, tb.pa, guesses[i].PlayerID)
			continue
		}
		assert.NotEqual(t, guesses[i-1].PlayerID, guesses[i].PlayerID, "guess %d broke turn order", i)
	}

	msgsA, msgsB := drain(tb.a), drain(tb.b)
	assert.Equal(t, len(guesses), countType(msgsA, "guess_result"))
	assert.Equal(t, len(guesses), countType(msgsB, "guess_result"))
	assert.Equal(t, 2*perPlayer, len(guesses)+countType(msgsA, "error")+countType(msgsB, "error"))
}

func TestWouldYouRatherAutoAdvance(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameWouldYouRather, "WYR001")
	e.start(t, tb, map[string]interface{}{"maxRounds": 2})
	advance := scheduler.Key{RoomID: tb.roomID, Kind: scheduler.KindAutoAdvance}

	e.send(tb.a, "submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "choice": "A"})
	expect(t, tb.a, "choice_submitted")
	assert.Empty(t, drain(tb.b), "a single choice is private")

	e.send(tb.b, "submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "choice": "A"})
	expect(t, tb.a, "choices_revealed")
	delay, ok := e.sched.Delay(advance)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, delay)

	require.True(t, e.sched.Fire(advance))
	next := expect(t, tb.b, "next_question")
	assert.Equal(t, 2, next["round"])
	st, _ := e.games.Get(tb.roomID)
	assert.Equal(t, wouldyourather.StatusPlaying, st.(*wouldyourather.State).Status)

	e.send(tb.a, "submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "choice": "B"})
	e.send(tb.b, "submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "choice": "A"})
	expect(t, tb.a, "choices_revealed")
	require.True(t, e.sched.Fire(advance))
	expect(t, tb.a, "game_finished")

	r, _ := e.dir.GetRoom(tb.roomID)
	assert.Equal(t, models.RoomFinished, r.Status)
	assert.Empty(t, e.sched.Pending())
}

func TestNextQuestionSkipsTheDelay(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameWouldYouRather, "WYR002")
	e.start(t, tb, map[string]interface{}{"maxRounds": 3})

	e.send(tb.a, "next_question", map[string]interface{}{"roomId": tb.roomID})
	expectError(t, tb.a, models.KindLifecycle)

	e.send(tb.a, "submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "choice": "A"})
	e.send(tb.b, "submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "choice": "B"})
	e.send(tb.a, "next_question", map[string]interface{}{"roomId": tb.roomID})
	expect(t, tb.b, "next_question")
	assert.Empty(t, e.sched.Pending())
}

func TestTicTacToeMoveTimeout(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameTicTacToe, "TTT001")
	e.start(t, tb, map[string]interface{}{"timeLimit": 5})
	timeout := scheduler.Key{RoomID: tb.roomID, Kind: scheduler.KindMoveTimeout}

	delay, ok := e.sched.Delay(timeout)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second+timeoutSlack, delay)

	e.clk.Advance(6 * time.Second)
	require.True(t, e.sched.Fire(timeout))
	assert.Equal(t, tb.pa, expect(t, tb.b, "move_timeout")["playerId"])
	over := expect(t, tb.b, "tic_tac_toe_game_over")
	assert.Equal(t, "O", over["winner"])
	assert.Equal(t, tb.pb, over["winnerId"])
	assert.Equal(t, false, over["matchOver"])
}

func TestTicTacToeMoveFromWrongPlayer(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameTicTacToe, "TTT002")
	e.start(t, tb, nil)

	e.send(tb.b, "make_move", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "row": 0, "col": 0})
	expectError(t, tb.b, models.KindAuthority)

	e.send(tb.a, "make_move", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "row": 1, "col": 1})
	made := expect(t, tb.b, "move_made")
	assert.Equal(t, true, made["turnAdvances"])
}

func TestRPSRoundAdvancesAfterDelay(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameRPS, "RPS001")
	e.start(t, tb, map[string]interface{}{"bestOf": 3})

	e.send(tb.a, "rps_submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "choice": "rock"})
	expect(t, tb.a, "rps_choice_submitted")
	assert.Empty(t, drain(tb.b))

	e.send(tb.b, "rps_submit_choice", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "choice": "scissors"})
	expect(t, tb.a, "rps_round_complete")

	advance := scheduler.Key{RoomID: tb.roomID, Kind: scheduler.KindAutoAdvance}
	delay, ok := e.sched.Delay(advance)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)
	require.True(t, e.sched.Fire(advance))
	expect(t, tb.b, "game_started")

	st, _ := e.games.Get(tb.roomID)
	assert.Equal(t, 2, st.(*rps.State).CurrentRound)
	assert.Equal(t, rps.StatusWaiting, st.(*rps.State).Status)
}

func TestHangmanNeverBroadcastsTheWord(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameHangman, "HANG01")
	e.start(t, tb, map[string]interface{}{"mode": "pvp", "difficulty": "easy"})

	e.send(tb.a, "hangman_set_word", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "word": "planet"})
	set := expect(t, tb.b, "hangman_word_set")
	assert.NotContains(t, toJSON(t, set), "PLANET")

	e.send(tb.a, "hangman_guess_letter", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "letter": "P"})
	expectError(t, tb.a, models.KindAuthority)

	for _, l := range []string{"P", "L", "A", "N", "E"} {
		e.send(tb.b, "hangman_guess_letter", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "letter": l})
		msg := expect(t, tb.a, "hangman_letter_guessed")
		assert.Equal(t, true, msg["correct"])
		assert.NotContains(t, toJSON(t, msg), "PLANET")
	}
	e.send(tb.b, "hangman_guess_letter", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb, "letter": "T"})
	over := expect(t, tb.a, "hangman_game_over")
	assert.Equal(t, "PLANET", over["word"])
	assert.Equal(t, tb.pb, over["winner"])

	st, _ := e.games.Get(tb.roomID)
	assert.Equal(t, hangman.StatusWon, st.(*hangman.State).Status)
}

func TestJoinFullRoom(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameTicTacToe, "FULL01")

	late := e.connect("late", "")
	e.send(late, "join_room", map[string]interface{}{"roomId": tb.roomID, "playerName": "Cy"})
	expectError(t, late, models.KindCapacity)

	r, _ := e.dir.GetRoom(tb.roomID)
	assert.Len(t, r.Players, 2)
}

func TestLeaveRoomIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameTicTacToe, "LEAV01")

	e.send(tb.b, "leave_room", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb})
	expect(t, tb.b, "room_left")
	assert.Equal(t, tb.pb, expect(t, tb.a, "player_left")["playerId"])

	e.send(tb.b, "leave_room", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb})
	expect(t, tb.b, "room_left")
	assert.Empty(t, drain(tb.a))

	r, ok := e.dir.GetRoom(tb.roomID)
	require.True(t, ok)
	assert.Len(t, r.Players, 1)

	e.send(tb.a, "leave_room", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa})
	expect(t, tb.a, "room_left")
	_, ok = e.dir.GetRoom(tb.roomID)
	assert.False(t, ok)
}

func TestDisconnectAbandonsGame(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameTicTacToe, "DISC01")
	e.start(t, tb, map[string]interface{}{"timeLimit": 10})

	e.hub.Disconnect(context.Background(), tb.b)
	assert.Equal(t, tb.pb, expect(t, tb.a, "player_left")["playerId"])
	expect(t, tb.a, "game_abandoned")

	assert.False(t, e.games.Has(tb.roomID))
	assert.Empty(t, e.sched.Pending())
	r, _ := e.dir.GetRoom(tb.roomID)
	assert.Equal(t, models.RoomWaiting, r.Status)
	assert.Equal(t, 1, e.hub.ConnectionCount())

	_, open := <-tb.b.OutChan
	assert.False(t, open)
}

func TestChangeGameDiscardsState(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameNumberGuessing, "CHNG01")
	e.rnd.QueueIntn(6)
	e.start(t, tb, map[string]interface{}{"minRange": 1, "maxRange": 10})

	e.send(tb.b, "change_game", map[string]interface{}{"roomId": tb.roomID, "newGameId": models.GameConnect4})
	changed := expect(t, tb.a, "game_changed")
	assert.Equal(t, models.GameConnect4, changed["newGameId"])
	assert.False(t, e.games.Has(tb.roomID))

	r, _ := e.dir.GetRoom(tb.roomID)
	assert.Equal(t, models.GameConnect4, r.GameID)
	assert.Equal(t, models.RoomWaiting, r.Status)

	e.send(tb.a, "make_guess", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa, "guess": 7})
	expectError(t, tb.a, models.KindNotFound)
}

func TestStartGameWhilePlaying(t *testing.T) {
	e := newTestEnv(t)
	tb := e.twoPlayerRoom(t, models.GameConnect4, "PLAY01")
	e.start(t, tb, nil)

	e.send(tb.b, "start_game", map[string]interface{}{"roomId": tb.roomID})
	expectError(t, tb.b, models.KindLifecycle)
}

func TestPermanentRoomOwnership(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := &models.User{Email: "olga@example.com", Username: "olga", Password: "correct horse"}
	guest := &models.User{Email: "gus@example.com", Username: "gus", Password: "battery staple"}
	require.NoError(t, e.users.CreateUser(ctx, owner))
	require.NoError(t, e.users.CreateUser(ctx, guest))

	anon := e.connect("anon", "")
	e.send(anon, "create_permanent_room", map[string]interface{}{"name": "Den", "gameId": models.GameTicTacToe})
	expectError(t, anon, models.KindAuthority)

	oc := e.connect("owner", owner.ID.String())
	e.send(oc, "create_permanent_room", map[string]interface{}{"name": "Den", "gameId": models.GameTicTacToe})
	created := expect(t, oc, "room_created")
	r := created["room"].(*models.Room)
	assert.True(t, r.IsPermanent)
	assert.Equal(t, "olga", r.Players[0].Name)

	gc := e.connect("guest", guest.ID.String())
	e.send(gc, "join_room", map[string]interface{}{"roomId": r.ID, "playerName": "Gus"})
	guestID := expect(t, gc, "room_joined")["playerId"].(string)

	e.send(gc, "update_room_name", map[string]interface{}{"roomId": r.ID, "name": "Mine now"})
	expectError(t, gc, models.KindAuthority)
	e.send(gc, "kick_player", map[string]interface{}{"roomId": r.ID, "playerId": created["playerId"]})
	expectError(t, gc, models.KindAuthority)
	e.send(gc, "change_game", map[string]interface{}{"roomId": r.ID, "newGameId": models.GameRPS})
	expectError(t, gc, models.KindAuthority)

	e.send(oc, "update_room_name", map[string]interface{}{"roomId": r.ID, "name": "Olga's Den"})
	renamed := expect(t, gc, "room_name_updated")
	assert.Equal(t, "Olga's Den", renamed["room"].(*models.Room).Name)

	e.send(gc, "get_public_rooms", nil)
	list := expect(t, gc, "public_rooms_list")
	assert.Len(t, list["rooms"], 1)

	e.send(oc, "kick_player", map[string]interface{}{"roomId": r.ID, "playerId": guestID})
	expect(t, gc, "player_kicked")
	assert.Equal(t, guestID, expect(t, oc, "player_left")["playerId"])
	assert.Empty(t, gc.Players())

	e.send(oc, "get_my_room", nil)
	mine := expect(t, oc, "my_room_data")
	assert.Equal(t, r.ID, mine["room"].(*models.Room).ID)
}

func TestCreatorHearsEveryRoomBroadcast(t *testing.T) {
	e := newTestEnv(t)
	e.rnd.QueueString("HEAR01")
	a := e.connect("conn-a", "")
	e.send(a, "create_room", map[string]interface{}{"playerName": "Alice", "gameId": models.GameRPS})
	roomID := expect(t, a, "room_created")["room"].(*models.Room).ID

	for i, name := range []string{"Bob", "Cara"} {
		c := e.connect(fmt.Sprintf("conn-%d", i), "")
		e.send(c, "join_room", map[string]interface{}{"roomId": roomID, "playerName": name})
		if name == "Cara" {
			expectError(t, c, models.KindCapacity)
			continue
		}
		expect(t, c, "room_joined")
	}
	msgs := drain(a)
	assert.Equal(t, 1, countType(msgs, "player_joined"))
	g, ok := e.hub.groups.Load(roomID)
	require.True(t, ok)
	assert.Equal(t, 2, g.Size())
}

func TestPermanentRoomKeepsItsLockAcrossEviction(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := &models.User{Email: "pia@example.com", Username: "pia", Password: "correct horse"}
	require.NoError(t, e.users.CreateUser(ctx, owner))

	oc := e.connect("owner", owner.ID.String())
	e.send(oc, "create_permanent_room", map[string]interface{}{"name": "Den", "gameId": models.GameRPS})
	created := expect(t, oc, "room_created")
	roomID := created["room"].(*models.Room).ID

	before, ok := e.hub.locks.Load(roomID)
	require.True(t, ok)

	e.send(oc, "leave_room", map[string]interface{}{"roomId": roomID, "playerId": created["playerId"]})
	expect(t, oc, "room_left")
	_, live := e.dir.GetRoom(roomID)
	require.False(t, live)

	after, ok := e.hub.locks.Load(roomID)
	require.True(t, ok)
	assert.Same(t, before, after)

	e.send(oc, "get_my_room", nil)
	assert.Equal(t, roomID, expect(t, oc, "my_room_data")["room"].(*models.Room).ID)
	again, _ := e.hub.locks.Load(roomID)
	assert.Same(t, before, again)

	// Temporary room codes are never revived, so their locks go with them.
	tb := e.twoPlayerRoom(t, models.GameRPS, "TEMP01")
	e.send(tb.a, "leave_room", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pa})
	e.send(tb.b, "leave_room", map[string]interface{}{"roomId": tb.roomID, "playerId": tb.pb})
	_, ok = e.hub.locks.Load(tb.roomID)
	assert.False(t, ok)
}

func TestMalformedMessages(t *testing.T) {
	e := newTestEnv(t)
	c := e.connect("c", "")

	e.hub.HandleMessage(context.Background(), c, []byte("{not json"))
	assert.Equal(t, "Invalid message format", expectError(t, c, models.KindValidation)["message"])

	e.send(c, "fly_to_moon", nil)
	assert.Equal(t, "Unknown message type: fly_to_moon", expectError(t, c, models.KindValidation)["message"])

	e.send(c, "join_room", map[string]interface{}{"playerName": "Ana"})
	assert.Equal(t, "Invalid roomId: field is required", expectError(t, c, models.KindValidation)["message"])

	e.send(c, "join_room", map[string]interface{}{"roomId": "NOPE00", "playerName": "Ana"})
	expectError(t, c, models.KindNotFound)
}

func TestFloodControl(t *testing.T) {
	e := newTestEnv(t)
	c := NewConnection("flood", "", "test", 0.001, 1)
	e.hub.Register(c)

	e.send(c, "get_public_rooms", nil)
	expect(t, c, "public_rooms_list")
	e.send(c, "get_public_rooms", nil)
	expectError(t, c, models.KindCapacity)
}

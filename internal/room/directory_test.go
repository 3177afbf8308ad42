package room

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/dependencies/mocks"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry is an in-memory Registry that records activation changes.
type fakeRegistry struct {
	mu      sync.Mutex
	byOwner map[uuid.UUID]*models.PermanentRoom
	failAll error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{byOwner: make(map[uuid.UUID]*models.PermanentRoom)}
}

func (f *fakeRegistry) UpsertForOwner(_ context.Context, ownerID uuid.UUID, name string, gameID models.GameID, maxPlayers int) (*models.PermanentRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	pr, ok := f.byOwner[ownerID]
	if !ok {
		pr = &models.PermanentRoom{ID: uuid.New(), OwnerID: ownerID, CreatedAt: time.Now()}
		f.byOwner[ownerID] = pr
	}
	pr.Name, pr.GameID, pr.MaxPlayers, pr.IsActive = name, gameID, maxPlayers, true
	c := *pr
	return &c, nil
}

func (f *fakeRegistry) GetByOwner(_ context.Context, ownerID uuid.UUID) (*models.PermanentRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	pr, ok := f.byOwner[ownerID]
	if !ok {
		return nil, nil
	}
	c := *pr
	return &c, nil
}

func (f *fakeRegistry) UpdateName(_ context.Context, roomID, ownerID uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr, ok := f.byOwner[ownerID]; ok && pr.ID == roomID {
		pr.Name = name
	}
	return f.failAll
}

func (f *fakeRegistry) setActive(ownerID uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr, ok := f.byOwner[ownerID]; ok {
		pr.IsActive = active
	}
	return f.failAll
}

func (f *fakeRegistry) Activate(_ context.Context, ownerID uuid.UUID) error {
	return f.setActive(ownerID, true)
}

func (f *fakeRegistry) Deactivate(_ context.Context, ownerID uuid.UUID) error {
	return f.setActive(ownerID, false)
}

func (f *fakeRegistry) ListPublic(_ context.Context, ownerIDs []uuid.UUID) ([]models.PublicRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PublicRoom
	for _, id := range ownerIDs {
		if pr, ok := f.byOwner[id]; ok && pr.IsActive {
			out = append(out, models.PublicRoom{PermanentRoom: *pr, OwnerUsername: "owner"})
		}
	}
	return out, f.failAll
}

func (f *fakeRegistry) active(ownerID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byOwner[ownerID].IsActive
}

func setupDirectory(t *testing.T) (*Directory, *fakeRegistry, *mocks.MockRandom) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := newFakeRegistry()
	rnd := mocks.NewMockRandom()
	clk := mocks.NewMockClock(time.Unix(1700000000, 0))
	return NewDirectory(reg, rnd, clk, logger), reg, rnd
}

func TestCreateRoom(t *testing.T) {
	d, _, rnd := setupDirectory(t)
	rnd.QueueString("ABC123")

	r, p, err := d.CreateRoom(models.GameTicTacToe, " Ana ", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", r.ID)
	assert.Equal(t, models.RoomWaiting, r.Status)
	assert.Equal(t, DefaultCapacity, r.MaxPlayers)
	assert.Equal(t, "Ana", p.Name)
	require.Len(t, r.Players, 1)
	assert.Equal(t, p.ID, r.Players[0].ID)
	assert.False(t, r.IsPermanent)

	_, _, err = d.CreateRoom("chess", "Ana", 0, "")
	assert.ErrorIs(t, err, models.ErrUnknownGame)
	_, _, err = d.CreateRoom(models.GameHangman, "Ana", 1, "")
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestRoomCodeRegeneratedOnCollision(t *testing.T) {
	d, _, rnd := setupDirectory(t)
	rnd.QueueString("AAAAAA", "AAAAAA", "BBBBBB")

	first, _, err := d.CreateRoom(models.GameRPS, "a", 0, "")
	require.NoError(t, err)
	second, _, err := d.CreateRoom(models.GameRPS, "b", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ID)
	assert.Equal(t, "BBBBBB", second.ID)
}

func TestJoinRoomFailures(t *testing.T) {
	d, _, rnd := setupDirectory(t)
	rnd.QueueString("ROOM01")
	r, _, err := d.CreateRoom(models.GameConnect4, "a", 2, "")
	require.NoError(t, err)

	_, _, err = d.JoinRoom("NOPE00", "b", "")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	_, _, err = d.JoinRoom(r.ID, "b", "")
	require.NoError(t, err)
	_, _, err = d.JoinRoom(r.ID, "c", "")
	assert.ErrorIs(t, err, models.ErrRoomFull)
	assert.Equal(t, "Room is full", models.PublicMessage(err))

	rnd.QueueString("ROOM02")
	r2, _, err := d.CreateRoom(models.GameConnect4, "a", 4, "")
	require.NoError(t, err)
	_, err = d.UpdateStatus(r2.ID, models.RoomPlaying)
	require.NoError(t, err)
	_, _, err = d.JoinRoom(r2.ID, "b", "")
	assert.ErrorIs(t, err, models.ErrGameInProgress)
}

func TestReturnedRoomsAreCopies(t *testing.T) {
	d, _, _ := setupDirectory(t)
	r, _, err := d.CreateRoom(models.GameHangman, "a", 0, "")
	require.NoError(t, err)
	r.Players[0].Name = "mutated"
	r.Status = models.RoomFinished

	got, ok := d.GetRoom(r.ID)
	require.True(t, ok)
	assert.Equal(t, "a", got.Players[0].Name)
	assert.Equal(t, models.RoomWaiting, got.Status)
}

func TestLeaveTemporaryRoom(t *testing.T) {
	d, _, _ := setupDirectory(t)
	ctx := context.Background()
	r, host, err := d.CreateRoom(models.GameNumberGuessing, "host", 0, "")
	require.NoError(t, err)
	_, guest, err := d.JoinRoom(r.ID, "guest", "")
	require.NoError(t, err)

	left, err := d.LeaveRoom(ctx, r.ID, guest.ID)
	require.NoError(t, err)
	require.NotNil(t, left)
	assert.Len(t, left.Players, 1)

	_, err = d.LeaveRoom(ctx, r.ID, "stranger")
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)

	left, err = d.LeaveRoom(ctx, r.ID, host.ID)
	require.NoError(t, err)
	assert.Nil(t, left)
	_, ok := d.GetRoom(r.ID)
	assert.False(t, ok)

	left, err = d.LeaveRoom(ctx, r.ID, host.ID)
	assert.NoError(t, err)
	assert.Nil(t, left)
}

func TestChangeGameResetsRoom(t *testing.T) {
	d, _, _ := setupDirectory(t)
	r, p, err := d.CreateRoom(models.GameTicTacToe, "a", 0, "")
	require.NoError(t, err)
	_, err = d.SetPlayerReady(r.ID, p.ID, true)
	require.NoError(t, err)
	_, err = d.UpdateStatus(r.ID, models.RoomPlaying)
	require.NoError(t, err)

	changed, err := d.ChangeGame(r.ID, models.GameConnect4)
	require.NoError(t, err)
	assert.Equal(t, models.GameConnect4, changed.GameID)
	assert.Equal(t, models.RoomWaiting, changed.Status)
	assert.False(t, changed.Players[0].IsReady)

	_, err = d.ChangeGame(r.ID, "poker")
	assert.ErrorIs(t, err, models.ErrUnknownGame)
	_, err = d.SetPlayerReady(r.ID, "ghost", true)
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
}

func TestPermanentRoomLifecycle(t *testing.T) {
	d, reg, _ := setupDirectory(t)
	ctx := context.Background()
	owner := uuid.New()

	_, _, err := d.LoadPermanentRoom(ctx, owner, "Olive")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	r, p, err := d.CreateOrLoadPermanentRoom(ctx, owner, "Olive", "Olive's den", models.GameRPS, 0)
	require.NoError(t, err)
	assert.True(t, r.IsPermanent)
	assert.Equal(t, owner.String(), r.OwnerID)
	assert.Equal(t, "Olive's den", r.Name)
	assert.Equal(t, DefaultPermanentCapacity, r.MaxPlayers)
	assert.True(t, d.IsRoomOwner(r.ID, owner.String()))
	assert.True(t, reg.active(owner))

	// A second call from the owner reuses their player record.
	again, p2, err := d.CreateOrLoadPermanentRoom(ctx, owner, "Olive", "Renamed", models.GameHangman, 0)
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID)
	assert.Equal(t, r.ID, again.ID)
	assert.Equal(t, "Renamed", again.Name)
	assert.Equal(t, models.GameHangman, again.GameID)

	_, guest, err := d.JoinRoom(r.ID, "guest", "")
	require.NoError(t, err)

	left, err := d.LeaveRoom(ctx, r.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, left)
	assert.False(t, reg.active(owner))

	left, err = d.LeaveRoom(ctx, r.ID, guest.ID)
	require.NoError(t, err)
	assert.Nil(t, left)
	_, ok := d.GetRoom(r.ID)
	assert.False(t, ok)

	// The durable identity survives eviction.
	back, _, err := d.LoadPermanentRoom(ctx, owner, "Olive")
	require.NoError(t, err)
	assert.Equal(t, r.ID, back.ID)
	assert.Equal(t, "Renamed", back.Name)
	assert.True(t, reg.active(owner))
}

func TestOwnerReturningToFullPermanentRoom(t *testing.T) {
	d, reg, _ := setupDirectory(t)
	ctx := context.Background()
	owner := uuid.New()

	r, p, err := d.CreateOrLoadPermanentRoom(ctx, owner, "Olive", "Tiny", models.GameRPS, 2)
	require.NoError(t, err)
	_, _, err = d.JoinRoom(r.ID, "first", "")
	require.NoError(t, err)
	_, err = d.LeaveRoom(ctx, r.ID, p.ID)
	require.NoError(t, err)
	_, _, err = d.JoinRoom(r.ID, "second", "")
	require.NoError(t, err)

	_, _, err = d.CreateOrLoadPermanentRoom(ctx, owner, "Olive", "Tiny", models.GameRPS, 2)
	assert.ErrorIs(t, err, models.ErrRoomFull)
	_, _, err = d.LoadPermanentRoom(ctx, owner, "Olive")
	assert.ErrorIs(t, err, models.ErrRoomFull)

	live, ok := d.GetRoom(r.ID)
	require.True(t, ok)
	assert.Len(t, live.Players, 2)
	assert.False(t, reg.active(owner))
}

func TestPermanentRoomRegistryFailure(t *testing.T) {
	d, reg, _ := setupDirectory(t)
	reg.failAll = errors.New("db down")
	_, _, err := d.CreateOrLoadPermanentRoom(context.Background(), uuid.New(), "a", "b", models.GameRPS, 0)
	assert.Equal(t, models.KindInternal, models.KindOf(err))
	assert.Equal(t, "Internal server error", models.PublicMessage(err))
}

func TestKickPlayer(t *testing.T) {
	d, _, _ := setupDirectory(t)
	ctx := context.Background()
	owner := uuid.New()
	r, ownerPlayer, err := d.CreateOrLoadPermanentRoom(ctx, owner, "Olive", "den", models.GameRPS, 0)
	require.NoError(t, err)
	_, guest, err := d.JoinRoom(r.ID, "guest", "")
	require.NoError(t, err)

	_, _, err = d.KickPlayer(r.ID, uuid.New(), guest.ID)
	assert.ErrorIs(t, err, models.ErrNotRoomOwner)
	_, _, err = d.KickPlayer(r.ID, owner, ownerPlayer.ID)
	assert.Equal(t, models.KindAuthority, models.KindOf(err))
	_, _, err = d.KickPlayer(r.ID, owner, "ghost")
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)

	after, kicked, err := d.KickPlayer(r.ID, owner, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, kicked.ID)
	assert.Len(t, after.Players, 1)

	temp, _, err := d.CreateRoom(models.GameRPS, "x", 0, "")
	require.NoError(t, err)
	_, _, err = d.KickPlayer(temp.ID, owner, "x")
	assert.Equal(t, models.KindLifecycle, models.KindOf(err))
}

func TestUpdateRoomName(t *testing.T) {
	d, reg, _ := setupDirectory(t)
	ctx := context.Background()
	owner := uuid.New()
	r, _, err := d.CreateOrLoadPermanentRoom(ctx, owner, "Olive", "den", models.GameRPS, 0)
	require.NoError(t, err)

	_, err = d.UpdateRoomName(ctx, r.ID, uuid.New(), "mine now")
	assert.ErrorIs(t, err, models.ErrNotRoomOwner)
	_, err = d.UpdateRoomName(ctx, r.ID, owner, "  ")
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	renamed, err := d.UpdateRoomName(ctx, r.ID, owner, "Game night")
	require.NoError(t, err)
	assert.Equal(t, "Game night", renamed.Name)
	pr, err := reg.GetByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Game night", pr.Name)
}

func TestPublicRoomsOnlyForConnectedOwners(t *testing.T) {
	d, _, _ := setupDirectory(t)
	ctx := context.Background()
	online, offline := uuid.New(), uuid.New()

	r, _, err := d.CreateOrLoadPermanentRoom(ctx, online, "On", "on", models.GameRPS, 4)
	require.NoError(t, err)
	_, _, err = d.JoinRoom(r.ID, "guest", "")
	require.NoError(t, err)
	off, offPlayer, err := d.CreateOrLoadPermanentRoom(ctx, offline, "Off", "off", models.GameRPS, 0)
	require.NoError(t, err)
	_, err = d.LeaveRoom(ctx, off.ID, offPlayer.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{online.String()}, d.ActiveAccountIDs())

	rooms, err := d.PublicRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, r.ID, rooms[0].ID.String())
	assert.Equal(t, 2, rooms[0].PlayerCount)
	assert.Equal(t, 4, rooms[0].MaxPlayers)
}

func TestRoomsForPlayerAndList(t *testing.T) {
	d, _, rnd := setupDirectory(t)
	rnd.QueueString("AAAAAA", "BBBBBB")
	a, p, err := d.CreateRoom(models.GameRPS, "a", 0, "")
	require.NoError(t, err)
	_, _, err = d.CreateRoom(models.GameRPS, "b", 0, "")
	require.NoError(t, err)

	assert.Equal(t, []string{a.ID}, d.RoomsForPlayer(p.ID))
	assert.Len(t, d.ListRooms(), 2)
	assert.Empty(t, d.RoomsForPlayer("nobody"))
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/gamehub/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, ctx context.Context, srv *httptest.Server, query string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	return c, err
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) map[string]interface{} {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebsocketSession(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(newTestRouter(t, e, 10))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.rnd.QueueString("SOCK01")
	c, err := dialHub(t, ctx, srv, "")
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, Subprotocol, c.Subprotocol())

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"create_room","playerName":"Ana","gameId":"connect-4"}`)))
	msg := readFrame(t, ctx, c)
	assert.Equal(t, "room_created", msg["type"])
	room := msg["room"].(map[string]interface{})
	assert.Equal(t, "SOCK01", room["id"])

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"start_game","roomId":"SOCK01"}`)))
	msg = readFrame(t, ctx, c)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "lifecycle", msg["code"])

	require.NoError(t, c.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool {
		_, ok := e.dir.GetRoom("SOCK01")
		return !ok && e.hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(newTestRouter(t, e, 10))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := dialHub(t, ctx, srv, "?token=not-a-token")
	require.NoError(t, err)
	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), websocket.CloseStatus(err))
}

func TestWebsocketCarriesAccount(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(newTestRouter(t, e, 10))
	defer srv.Close()

	token, err := auth.CreateJWT("7b0a4f5e-8f0c-4c55-9d43-3d4a8f1c2b10")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := dialHub(t, ctx, srv, "?token="+token)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"get_my_room"}`)))
	msg := readFrame(t, ctx, c)
	assert.Equal(t, "my_room_data", msg["type"])
	assert.Nil(t, msg["room"])
}

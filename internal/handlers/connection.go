package handlers

import (
	"sync"

	"github.com/jason-s-yu/gamehub/internal/models"
	"golang.org/x/time/rate"
)

// Message is one outbound frame.
type Message map[string]interface{}

// outBuffer is how many frames may queue for a slow client before new frames
// are dropped.
const outBuffer = 64

// Connection is one client session. It may own several players, usually one.
type Connection struct {
	ID     string
	UserID string // empty for anonymous clients
	Remote string

	OutChan chan Message
	limiter *rate.Limiter

	mu      sync.Mutex
	closed  bool
	players map[string]string // player id -> room id
}

// NewConnection builds a session whose inbound messages are limited to
// perSecond with the given burst.
func NewConnection(id, userID, remote string, perSecond float64, burst int) *Connection {
	return &Connection{
		ID:      id,
		UserID:  userID,
		Remote:  remote,
		OutChan: make(chan Message, outBuffer),
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		players: make(map[string]string),
	}
}

// Send queues msg without blocking. It reports false when the connection is
// closed or its buffer is full.
func (c *Connection) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.OutChan <- msg:
		return true
	default:
		return false
	}
}

// WriteError sends the client-visible form of err.
func (c *Connection) WriteError(err error) {
	c.Send(Message{
		"type":    "error",
		"message": models.PublicMessage(err),
		"code":    models.KindOf(err),
	})
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.OutChan)
	}
}

func (c *Connection) addPlayer(playerID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[playerID] = roomID
}

func (c *Connection) removePlayer(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.players, playerID)
}

// hasPlayerIn reports whether the connection still owns a player in roomID.
func (c *Connection) hasPlayerIn(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.players {
		if r == roomID {
			return true
		}
	}
	return false
}

// Players returns a snapshot of the owned players keyed by player id.
func (c *Connection) Players() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.players))
	for p, r := range c.players {
		out[p] = r
	}
	return out
}

// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/auth"
	"github.com/jason-s-yu/gamehub/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval    = 30 * time.Second
	pingTimeout     = 15 * time.Second
	writeTimeout    = 5 * time.Second
	disconnectGrace = 5 * time.Second
)

// originHosts turns configured origins into the host patterns websocket.Accept
// matches against. "*" allows every origin.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}

// WSHandler upgrades a request to a hub session. A token is optional, but a
// token that fails to verify closes the socket with InvalidAuthTokenError.
func WSHandler(logger *logrus.Logger, hub *Hub, allowedOrigins []string) http.HandlerFunc {
	patterns := originHosts(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error from %s: %v", remoteAddr, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the gamehub subprotocol")
			return
		}

		userID := ""
		if token := tokenFromRequest(r); token != "" {
			userID, err = auth.AuthenticateJWT(token)
			if err != nil {
				logger.Warnf("invalid token from %s: %v", remoteAddr, err)
				c.Close(InvalidAuthTokenError, "invalid auth token")
				return
			}
		}

		conn := NewConnection(uuid.NewString(), userID, remoteAddr, hub.opts.MessageRate, hub.opts.MessageBurst)
		hub.Register(conn)
		middleware.LogWebSocketConnect(logger, remoteAddr, conn.ID, userID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go writePump(ctx, c, conn, logger)

		readErr := readPump(ctx, c, hub, conn, logger)
		cancel()

		// The request context is gone by now; registry updates on leave still
		// need a live one.
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectGrace)
		hub.Disconnect(dctx, conn)
		dcancel()
		middleware.LogWebSocketDisconnect(logger, remoteAddr, conn.ID, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump feeds inbound frames to the hub until the socket closes. It
// returns the read error unless the close was a normal one.
func readPump(ctx context.Context, c *websocket.Conn, hub *Hub, conn *Connection, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("Connection %s: ignoring non-text message type %d", conn.ID, typ)
			continue
		}
		hub.HandleMessage(ctx, conn, msg)
	}
}

// writePump drains conn.OutChan to the socket and keeps it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				_ = c.Close(ServerShutdownError, "server closed the connection")
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Connection %s: failed to marshal outgoing %v: %v", conn.ID, msg["type"], err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Connection %s: failed to write to websocket: %v", conn.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Connection %s: ping failed, assuming disconnect: %v", conn.ID, err)
				return
			}
		}
	}
}

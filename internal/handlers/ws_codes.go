// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes. These give clients a more specific reason for
// closure than the standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected without the gamehub subprotocol.
	InvalidAuthTokenError = 3001 // The supplied auth token was invalid or expired.
	ServerShutdownError   = 3002 // The server is going away.
)

// Subprotocol is the websocket subprotocol every client must request.
const Subprotocol = "gamehub"

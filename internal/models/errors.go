// internal/models/errors.go
package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the protocol layer can map them to a
// client-visible code without inspecting messages.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindCapacity   ErrorKind = "capacity"
	KindLifecycle  ErrorKind = "lifecycle"
	KindAuthority  ErrorKind = "authority"
	KindValidation ErrorKind = "validation"
	KindInternal   ErrorKind = "internal"
)

// Error is the typed error raised by rule modules, the room directory and the
// protocol handler. Message is safe to show to players.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on kind and message so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func Capacity(format string, args ...interface{}) error {
	return newError(KindCapacity, format, args...)
}

func Lifecycle(format string, args ...interface{}) error {
	return newError(KindLifecycle, format, args...)
}

func Authority(format string, args ...interface{}) error {
	return newError(KindAuthority, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

// Internal wraps an infrastructure failure. The cause is kept for logging but
// the message shown to players stays generic.
func Internal(cause error) error {
	return &internalError{cause: cause}
}

type internalError struct {
	cause error
}

func (e *internalError) Error() string {
	if e.cause == nil {
		return "internal server error"
	}
	return "internal server error: " + e.cause.Error()
}

func (e *internalError) Unwrap() error { return e.cause }

// KindOf reports the kind of err. Anything that is not a *Error is internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the text that may be sent to a client for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

var (
	ErrRoomNotFound       = &Error{Kind: KindNotFound, Message: "Room not found"}
	ErrGameNotFound       = &Error{Kind: KindNotFound, Message: "Game not found"}
	ErrPlayerNotFound     = &Error{Kind: KindNotFound, Message: "Player not found"}
	ErrRoomFull           = &Error{Kind: KindCapacity, Message: "Room is full"}
	ErrGameInProgress     = &Error{Kind: KindLifecycle, Message: "Game already in progress"}
	ErrNotEnoughPlayers   = &Error{Kind: KindLifecycle, Message: "Need at least 2 players to start"}
	ErrNotPlaying         = &Error{Kind: KindLifecycle, Message: "Game is not in playing state"}
	ErrNotYourTurn        = &Error{Kind: KindAuthority, Message: "Not your turn"}
	ErrNotParticipant     = &Error{Kind: KindAuthority, Message: "You are not playing in this game"}
	ErrNotRoomOwner       = &Error{Kind: KindAuthority, Message: "Only the room owner can do that"}
	ErrAuthRequired       = &Error{Kind: KindAuthority, Message: "Authentication required"}
	ErrNotYourPlayer      = &Error{Kind: KindAuthority, Message: "That player does not belong to this connection"}
	ErrPowerUpsDisabled   = &Error{Kind: KindLifecycle, Message: "Power-ups are not enabled"}
	ErrPowerUpUnavailable = &Error{Kind: KindAuthority, Message: "Power-up not available"}
	ErrAlreadyChosen      = &Error{Kind: KindLifecycle, Message: "You have already made a choice this round"}
	ErrUnknownGame        = &Error{Kind: KindValidation, Message: "Unknown game"}
)

package protocol

import (
	"errors"

	"github.com/mcoot/numberhunt/internal/model"
)

// Error codes carried alongside room:error messages
const (
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeRoomStarted   = "ROOM_STARTED"
	CodeRoomFull      = "ROOM_FULL"
	CodeNotInRoom     = "NOT_IN_ROOM"
	CodeNotHost       = "NOT_HOST"
	CodeWrongSize     = "WRONG_SIZE"
	CodeNotAllReady   = "NOT_ALL_READY"
	CodeInternalError = "INTERNAL_ERROR"
)

// Fixed messages for connection-level errors
const (
	MessageMustHello   = "must hello first"
	MessageUnknownType = "unknown message type"
)

// NewRoomError maps a domain error to the room:error reply sent to the
// originating connection
func NewRoomError(err error) ErrorReply {
	code, message := classify(err)
	return ErrorReply{Type: TypeRoomError, Code: code, Message: message}
}

// NewError builds a generic error reply
func NewError(message string) ErrorReply {
	return ErrorReply{Type: TypeError, Message: message}
}

// ErrorMessage returns the user-facing text for a domain error
func ErrorMessage(err error) string {
	_, message := classify(err)
	return message
}

func classify(err error) (string, string) {
	switch {
	case errors.Is(err, model.ErrRoomNotFound):
		return CodeRoomNotFound, "Room not found"
	case errors.Is(err, model.ErrRoomStarted):
		return CodeRoomStarted, "Room already started"
	case errors.Is(err, model.ErrRoomFull):
		return CodeRoomFull, "Room is full"
	case errors.Is(err, model.ErrNotInRoom):
		return CodeNotInRoom, "Not in a room"
	case errors.Is(err, model.ErrNotHost):
		return CodeNotHost, "Only the host can start"
	case errors.Is(err, model.ErrWrongSize):
		return CodeWrongSize, "Room needs exactly two players"
	case errors.Is(err, model.ErrNotAllReady):
		return CodeNotAllReady, "Not all players are ready"
	default:
		return CodeInternalError, "Internal error"
	}
}

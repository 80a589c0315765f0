package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks a payload that is not a JSON object with a string type
var ErrMalformed = errors.New("malformed message")

type envelope struct {
	Type *string `json:"type"`
}

// Parse decodes one inbound text payload into its typed message. Messages
// with an unrecognised type decode to Unknown rather than failing.
func Parse(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var msg any
	switch *env.Type {
	case TypeHello:
		msg = &Hello{}
	case TypeQueueJoin:
		return &QueueJoin{}, nil
	case TypeQueueLeave:
		return &QueueLeave{}, nil
	case TypeRoomCreate:
		msg = &RoomCreate{}
	case TypeRoomJoin:
		msg = &RoomJoin{}
	case TypeRoomLeave:
		return &RoomLeave{}, nil
	case TypeRoomReady:
		msg = &RoomReady{}
	case TypeRoomStart:
		return &RoomStart{}, nil
	case TypeGameProgress:
		msg = &GameProgress{}
	default:
		return &Unknown{Type: *env.Type}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, *env.Type, err)
	}
	return msg, nil
}

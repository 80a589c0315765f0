package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")

	// Room errors
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomStarted        = errors.New("room already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNotInRoom          = errors.New("not in a room")
	ErrAlreadyInRoom      = errors.New("already in a room")
	ErrNotHost            = errors.New("only the host can start")
	ErrWrongSize          = errors.New("room needs exactly two players")
	ErrNotAllReady        = errors.New("not all players are ready")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")
)

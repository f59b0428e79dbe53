package hub

import "errors"

// Join failures. Each is reported only to the originating connection and
// never affects other members or rooms.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomInactive = errors.New("room is not active")
	ErrRoomFull     = errors.New("room is full")
)

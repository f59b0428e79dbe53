package hub

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinRoom     = "join-room"
	EventDrawing      = "drawing"
	EventSaveCanvas   = "save-canvas"
	EventClearBoard   = "clear-board"
	EventChatMessage  = "chat-message"
	EventCursorMove   = "cursor-move"
	EventJoinVideo    = "join-video"
	EventLeaveVideo   = "leave-video"
	EventVideoOffer   = "video-offer"
	EventVideoAnswer  = "video-answer"
	EventICECandidate = "ice-candidate"
)

// Outbound event names.
const (
	EventCanvasData      = "canvas-data"
	EventRoomUsers       = "room-users"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventBoardCleared    = "board-cleared"
	EventUserVideoJoined = "user-video-joined"
	EventUserVideoLeft   = "user-video-left"
	EventError           = "error"
)

// Envelope is the wire frame in both directions: a type tag plus a payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outEvent is the outbound counterpart with an already-built payload.
type outEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// MemberInfo 접속자 정보 (room-users, user-joined, user-left)
type MemberInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// JoinRoomPayload join-room 요청
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// Drawing stroke lifecycle kinds.
const (
	DrawStart = "start"
	DrawMove  = "draw"
	DrawEnd   = "end"
)

// DrawingPayload one stroke-lifecycle message. X and Y are pointers so a
// missing coordinate is distinguishable from zero.
type DrawingPayload struct {
	Kind      string   `json:"type"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	Color     string   `json:"color,omitempty"`
	BrushSize float64  `json:"brushSize,omitempty"`
}

// DrawingBroadcast outbound drawing, tagged with the sender.
type DrawingBroadcast struct {
	DrawingPayload
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// SaveCanvasPayload save-canvas 요청
type SaveCanvasPayload struct {
	CanvasData string `json:"canvasData"`
}

// CanvasDataPayload canvas-data 전송 (신규 참가자 동기화)
type CanvasDataPayload struct {
	CanvasData string `json:"canvasData"`
}

// RoomUsersPayload room-users 전송
type RoomUsersPayload struct {
	Users []MemberInfo `json:"users"`
}

// UserEventPayload user-joined / user-left 전송
type UserEventPayload struct {
	User MemberInfo `json:"user"`
}

// BoardClearedPayload board-cleared 전송
type BoardClearedPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// ChatPayload chat-message 요청
type ChatPayload struct {
	Message string `json:"message"`
}

// ChatBroadcast outbound chat message with the server timestamp.
type ChatBroadcast struct {
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CursorPayload cursor-move 요청
type CursorPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CursorBroadcast outbound cursor position.
type CursorBroadcast struct {
	UserID   int64   `json:"userId"`
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// VideoPresencePayload join-video / leave-video 요청
type VideoPresencePayload struct {
	RoomID string `json:"roomId"`
	UserID int64  `json:"userId"`
}

// VideoUserPayload user-video-joined / user-video-left 전송
type VideoUserPayload struct {
	UserID int64 `json:"userId"`
}

// SignalPayload video-offer / video-answer / ice-candidate 요청.
// SDP and candidate bodies are opaque to the relay.
type SignalPayload struct {
	RoomID       string          `json:"roomId"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	TargetUserID int64           `json:"targetUserId"`
}

// SignalBroadcast unicast signaling message, tagged with the sender.
type SignalBroadcast struct {
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	FromUserID int64           `json:"fromUserId"`
}

// ErrorPayload error 전송 (요청자에게만)
type ErrorPayload struct {
	Message string `json:"message"`
}

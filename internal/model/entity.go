package model

import (
	"time"
)

// Participant roles within a room.
const (
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// Drawing history actions.
const (
	ActionDraw  = "draw"
	ActionClear = "clear"
)

// User 사용자
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username  string    `gorm:"type:varchar(100);not null" json:"username"`
	Avatar    *string   `gorm:"type:text" json:"avatar,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Rooms []RoomParticipant `gorm:"foreignKey:UserID" json:"rooms,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Room 화이트보드 룸
type Room struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code            string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"room_id"`
	Name            string    `gorm:"type:varchar(200);not null" json:"name"`
	HostID          int64     `gorm:"not null" json:"host_id"`
	CanvasData      string    `gorm:"type:text;default:''" json:"canvas_data"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	MaxParticipants int       `gorm:"default:50" json:"max_participants"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Host          User               `gorm:"foreignKey:HostID" json:"host,omitempty"`
	Participants  []RoomParticipant  `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
	DrawingEvents []RoomDrawingEvent `gorm:"foreignKey:RoomID" json:"drawing_events,omitempty"`
	ChatMessages  []RoomChatMessage  `gorm:"foreignKey:RoomID" json:"chat_messages,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// HasParticipant reports whether userID is on the persisted roster.
// Participants must be preloaded.
func (r *Room) HasParticipant(userID int64) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// RoomParticipant 룸 전체 참가자 명단 (접속 이력 기준, 현재 접속자 목록과는 다름)
type RoomParticipant struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID   int64     `gorm:"not null;uniqueIndex:idx_room_user" json:"room_id"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_room_user" json:"user_id"`
	Role     string    `gorm:"type:varchar(20);default:'participant'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	// Relations
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (RoomParticipant) TableName() string {
	return "room_participants"
}

// RoomDrawingEvent 드로잉 히스토리 (append-only)
type RoomDrawingEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    int64     `gorm:"not null;index:idx_drawing_room_created" json:"room_id"`
	UserID    int64     `gorm:"not null" json:"user_id"`
	Action    string    `gorm:"type:varchar(20);not null" json:"action"` // draw, clear
	Data      string    `gorm:"type:jsonb" json:"data"` // raw event payload
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_drawing_room_created" json:"created_at"`

	// Relations
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (RoomDrawingEvent) TableName() string {
	return "room_drawing_events"
}

// RoomChatMessage 채팅 기록 (append-only)
type RoomChatMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    int64     `gorm:"not null;index:idx_chat_room_created" json:"room_id"`
	UserID    int64     `gorm:"not null" json:"user_id"`
	Username  string    `gorm:"type:varchar(100);not null" json:"username"`
	Message   string    `gorm:"type:varchar(500);not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_chat_room_created" json:"created_at"`

	// Relations
	Room Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (RoomChatMessage) TableName() string {
	return "room_chat_messages"
}

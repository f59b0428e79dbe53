package hub

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is the write side of one live transport session. Satisfied by
// *websocket.Conn; tests substitute a fake.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Identity 인증된 사용자 참조 (연결 수명 동안 불변)
type Identity struct {
	ID       int64
	Username string
	Avatar   string
}

// Client is one connection's registry slot: the live conn plus the current
// room. room and roomID are guarded by the hub mutex, not by the client.
type Client struct {
	ConnID string
	User   Identity

	conn    Conn
	writeMu sync.Mutex

	room   string // current room code, "" when not in a room
	roomID int64  // db id of the current room
}

// NewClient wraps an authenticated connection.
func NewClient(user Identity, conn Conn) *Client {
	return &Client{
		ConnID: uuid.New().String(),
		User:   user,
		conn:   conn,
	}
}

// Room returns the current room code ("" when not in a room). Only meaningful
// outside the hub lock as a snapshot.
func (c *Client) Room() string {
	return c.room
}

// send writes one event frame. Write failures are logged and otherwise
// ignored; the read loop notices the dead conn and disconnects.
func (c *Client) send(event string, payload any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteJSON(outEvent{Type: event, Payload: payload}); err != nil {
		log.Printf("[Hub] send %s to user %d failed: %v", event, c.User.ID, err)
	}
}

// SendError reports a failure to the originating connection only.
func (c *Client) SendError(message string) {
	c.send(EventError, ErrorPayload{Message: message})
}

func (c *Client) memberInfo() MemberInfo {
	return MemberInfo{
		ID:       c.User.ID,
		Username: c.User.Username,
		Avatar:   c.User.Avatar,
	}
}

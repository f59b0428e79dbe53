package handler

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/contrib/websocket"

	"whiteboard-backend/internal/hub"
)

// BoardWSHandler 화이트보드 WebSocket 핸들러
type BoardWSHandler struct {
	hub *hub.Hub
}

// NewBoardWSHandler BoardWSHandler 생성
func NewBoardWSHandler(h *hub.Hub) *BoardWSHandler {
	return &BoardWSHandler{hub: h}
}

// HandleWebSocket runs one connection's event loop. Authentication already
// happened during the upgrade; the identity arrives through Locals.
func (h *BoardWSHandler) HandleWebSocket(c *websocket.Conn) {
	userID, ok1 := c.Locals("userID").(int64)
	username, ok2 := c.Locals("username").(string)
	avatar, _ := c.Locals("avatar").(string)

	if !ok1 || !ok2 {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"invalid session"}}`))
		c.Close()
		return
	}

	client := hub.NewClient(hub.Identity{ID: userID, Username: username, Avatar: avatar}, c)
	h.hub.Register(client)

	defer func() {
		h.hub.Disconnect(client)
		c.Close()
	}()

	// 메시지 수신 루프
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var env hub.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			continue
		}

		h.dispatch(client, env)
	}
}

func (h *BoardWSHandler) dispatch(client *hub.Client, env hub.Envelope) {
	switch env.Type {
	case hub.EventJoinRoom:
		var p hub.JoinRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if err := h.hub.JoinRoom(client, p.RoomID); err != nil {
			h.sendJoinError(client, err)
		}

	case hub.EventDrawing:
		var p hub.DrawingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.RelayDrawing(client, p)

	case hub.EventSaveCanvas:
		var p hub.SaveCanvasPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.SaveCanvas(client, p.CanvasData)

	case hub.EventClearBoard:
		h.hub.ClearBoard(client)

	case hub.EventChatMessage:
		var p hub.ChatPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.RelayChat(client, p.Message)

	case hub.EventCursorMove:
		var p hub.CursorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.RelayCursor(client, p)

	case hub.EventJoinVideo:
		var p hub.VideoPresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.VideoJoin(client, p)

	case hub.EventLeaveVideo:
		var p hub.VideoPresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.VideoLeave(client, p)

	case hub.EventVideoOffer:
		var p hub.SignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.RelayOffer(client, p)

	case hub.EventVideoAnswer:
		var p hub.SignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.RelayAnswer(client, p)

	case hub.EventICECandidate:
		var p hub.SignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.hub.RelayICECandidate(client, p)
	}
}

// sendJoinError maps join failures to the error event for the requester.
func (h *BoardWSHandler) sendJoinError(client *hub.Client, err error) {
	message := "Failed to join room"
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		message = "Room not found"
	case errors.Is(err, hub.ErrRoomInactive):
		message = "Room is not active"
	case errors.Is(err, hub.ErrRoomFull):
		message = "Room is full"
	default:
		log.Printf("[BoardWS] join room failed: %v", err)
	}
	client.SendError(message)
}

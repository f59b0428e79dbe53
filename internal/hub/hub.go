package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"
)

// Hub is the single in-memory authority for live sessions: which identity is
// connected, and who is currently in which room. All compound registry and
// presence transitions happen under one mutex with no I/O inside the critical
// section; store reads run before the lock and store writes go through the
// async writer after it, so a concurrent reader can never observe a
// half-updated roster.
type Hub struct {
	mu       sync.Mutex
	clients  map[int64]*Client        // identity id -> live connection slot
	presence map[string]*roomPresence // room code -> connected members

	store  store.RoomStore
	writer *store.AsyncWriter

	defaultCapacity int
	chatMaxLen      int
}

// roomPresence is the set of currently-connected members of one room,
// ordered by join time. Created lazily on first join, discarded when empty.
type roomPresence struct {
	roomID  int64
	members []*Client
}

func (p *roomPresence) memberInfos() []MemberInfo {
	infos := make([]MemberInfo, 0, len(p.members))
	for _, m := range p.members {
		infos = append(infos, m.memberInfo())
	}
	return infos
}

// Config Hub 구성
type Config struct {
	DefaultCapacity int
	ChatMaxLength   int
}

// New creates a Hub. Registry and presence state are process-scoped and owned
// by this value; construct one per server, inject it into handlers.
func New(s store.RoomStore, w *store.AsyncWriter, cfg Config) *Hub {
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = 50
	}
	if cfg.ChatMaxLength <= 0 {
		cfg.ChatMaxLength = 500
	}
	return &Hub{
		clients:         make(map[int64]*Client),
		presence:        make(map[string]*roomPresence),
		store:           s,
		writer:          w,
		defaultCapacity: cfg.DefaultCapacity,
		chatMaxLen:      cfg.ChatMaxLength,
	}
}

// departure is the snapshot needed to notify a room after a member left;
// built under the lock, delivered after it.
type departure struct {
	user       MemberInfo
	recipients []*Client
	roster     []MemberInfo
}

// Register claims the registry slot for the client's identity. A second
// simultaneous connection from the same identity replaces the first: the old
// connection gets full leave cleanup and is closed, so its eventual transport
// disconnect can never clear presence the new connection owns.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.User.ID]
	var dep *departure
	if old != nil {
		dep = h.leaveLocked(old)
	}
	h.clients[c.User.ID] = c
	h.mu.Unlock()

	if old != nil {
		h.notifyLeft(dep, false)
		old.conn.Close()
		log.Printf("[Hub] user %d reconnected, replaced connection %s", c.User.ID, old.ConnID)
	}

	log.Printf("[Hub] user %s (%d) connected", c.User.Username, c.User.ID)
}

// Disconnect removes the connection from presence and registry and notifies
// the remaining room members. Safe to call for already-replaced connections.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	if h.clients[c.User.ID] == c {
		delete(h.clients, c.User.ID)
	}
	dep := h.leaveLocked(c)
	h.mu.Unlock()

	h.notifyLeft(dep, true)
	log.Printf("[Hub] user %s (%d) disconnected", c.User.Username, c.User.ID)
}

// JoinRoom moves the connection into the target room: leave-cleanup for any
// prior room, presence add, then snapshot and roster pushes. Membership is
// mutated synchronously under the lock; the store fetch happens before it and
// every broadcast after it.
func (h *Hub) JoinRoom(c *Client, code string) error {
	room, err := h.store.FindRoomByCode(context.Background(), code)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if !room.IsActive {
		return ErrRoomInactive
	}

	capacity := room.MaxParticipants
	if capacity <= 0 {
		capacity = h.defaultCapacity
	}
	onRoster := room.HasParticipant(c.User.ID)

	h.mu.Lock()
	if h.clients[c.User.ID] != c {
		// replaced while the fetch was in flight; drop the join
		h.mu.Unlock()
		return nil
	}
	if p := h.presence[code]; p != nil && len(p.members)+1 > capacity && !onRoster {
		h.mu.Unlock()
		return ErrRoomFull
	}

	dep := h.leaveLocked(c)

	p := h.presence[code]
	if p == nil {
		p = &roomPresence{roomID: room.ID}
		h.presence[code] = p
	}
	p.members = append(p.members, c)
	c.room = code
	c.roomID = room.ID

	roster := p.memberInfos()
	others := make([]*Client, 0, len(p.members)-1)
	for _, m := range p.members {
		if m != c {
			others = append(others, m)
		}
	}
	h.mu.Unlock()

	if !onRoster {
		h.writer.AddRosterMember(room.ID, c.User.ID, model.RoleParticipant)
	}

	h.notifyLeft(dep, false)

	c.send(EventCanvasData, CanvasDataPayload{CanvasData: room.CanvasData})
	c.send(EventRoomUsers, RoomUsersPayload{Users: roster})

	joined := UserEventPayload{User: c.memberInfo()}
	for _, m := range others {
		m.send(EventUserJoined, joined)
	}
	refreshed := RoomUsersPayload{Users: roster}
	c.send(EventRoomUsers, refreshed)
	for _, m := range others {
		m.send(EventRoomUsers, refreshed)
	}

	log.Printf("[Hub] user %s joined room %s", c.User.Username, code)
	return nil
}

// leaveLocked removes c from its current room's presence, discarding the set
// when it empties. Caller holds h.mu. Returns the departure to broadcast, or
// nil when c was not in a room.
func (h *Hub) leaveLocked(c *Client) *departure {
	if c.room == "" {
		return nil
	}

	code := c.room
	c.room = ""
	c.roomID = 0

	p := h.presence[code]
	if p == nil {
		return nil
	}
	for i, m := range p.members {
		if m == c {
			p.members = append(p.members[:i], p.members[i+1:]...)
			break
		}
	}
	if len(p.members) == 0 {
		delete(h.presence, code)
		return &departure{user: c.memberInfo()}
	}

	return &departure{
		user:       c.memberInfo(),
		recipients: append([]*Client(nil), p.members...),
		roster:     p.memberInfos(),
	}
}

// notifyLeft broadcasts a departure and the refreshed roster to the remaining
// members. withVideo additionally announces video departure, mirroring a
// transport disconnect.
func (h *Hub) notifyLeft(dep *departure, withVideo bool) {
	if dep == nil {
		return
	}

	left := UserEventPayload{User: dep.user}
	roster := RoomUsersPayload{Users: dep.roster}
	video := VideoUserPayload{UserID: dep.user.ID}
	for _, m := range dep.recipients {
		m.send(EventUserLeft, left)
		if withVideo {
			m.send(EventUserVideoLeft, video)
		}
		m.send(EventRoomUsers, roster)
	}
}

// roomState snapshots the sender's room under the lock. ok is false
// when the connection has no current room — callers drop the event silently,
// an expected outcome during room-switch races, not an error.
func (h *Hub) roomState(c *Client) (code string, roomID int64, all, others []*Client, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.room == "" {
		return "", 0, nil, nil, false
	}
	p := h.presence[c.room]
	if p == nil {
		return "", 0, nil, nil, false
	}

	all = append([]*Client(nil), p.members...)
	others = make([]*Client, 0, len(p.members)-1)
	for _, m := range p.members {
		if m != c {
			others = append(others, m)
		}
	}
	return c.room, c.roomID, all, others, true
}

// RelayDrawing validates a stroke event, fans it out to every other room
// member, and appends it to the drawing history. Persistence is issued
// fire-and-forget and never blocks or reverses the broadcast.
func (h *Hub) RelayDrawing(c *Client, p DrawingPayload) {
	_, roomID, _, others, ok := h.roomState(c)
	if !ok {
		return
	}

	if !validateDrawing(p) {
		c.SendError("Invalid drawing data")
		return
	}

	out := DrawingBroadcast{
		DrawingPayload: p,
		UserID:         c.User.ID,
		Username:       c.User.Username,
	}
	for _, m := range others {
		m.send(EventDrawing, out)
	}

	data, err := json.Marshal(p)
	if err != nil {
		log.Printf("[Hub] drawing marshal failed: %v", err)
		return
	}
	h.writer.AppendDrawingEvent(roomID, c.User.ID, string(data))
}

// SaveCanvas checkpoints the canvas snapshot for late joiners. Last write
// wins, no version check, no broadcast.
func (h *Hub) SaveCanvas(c *Client, canvasData string) {
	_, roomID, _, _, ok := h.roomState(c)
	if !ok {
		return
	}
	h.writer.SetCanvasSnapshot(roomID, canvasData)
}

// ClearBoard resets the snapshot, appends a clear marker to the history, and
// tells every member, including the sender, that the board was wiped.
func (h *Hub) ClearBoard(c *Client) {
	_, roomID, all, _, ok := h.roomState(c)
	if !ok {
		return
	}

	h.writer.ClearCanvas(roomID, c.User.ID)

	cleared := BoardClearedPayload{UserID: c.User.ID, Username: c.User.Username}
	for _, m := range all {
		m.send(EventBoardCleared, cleared)
	}
}

// RelayChat sanitizes, stamps a server timestamp, appends to the transcript,
// and broadcasts to all members including the sender.
func (h *Hub) RelayChat(c *Client, message string) {
	code, roomID, all, _, ok := h.roomState(c)
	if !ok {
		return
	}

	sanitized := sanitizeChatMessage(message, h.chatMaxLen)
	if sanitized == "" {
		c.SendError("Invalid message")
		return
	}

	now := time.Now()
	h.writer.AppendChatMessage(code, &model.RoomChatMessage{
		RoomID:    roomID,
		UserID:    c.User.ID,
		Username:  c.User.Username,
		Message:   sanitized,
		CreatedAt: now,
	})

	out := ChatBroadcast{
		UserID:    c.User.ID,
		Username:  c.User.Username,
		Message:   sanitized,
		Timestamp: now,
	}
	for _, m := range all {
		m.send(EventChatMessage, out)
	}
}

// RelayCursor fans a cursor position out to the other members. Never
// persisted.
func (h *Hub) RelayCursor(c *Client, p CursorPayload) {
	_, _, _, others, ok := h.roomState(c)
	if !ok {
		return
	}

	out := CursorBroadcast{
		UserID:   c.User.ID,
		Username: c.User.Username,
		X:        p.X,
		Y:        p.Y,
	}
	for _, m := range others {
		m.send(EventCursorMove, out)
	}
}

// VideoJoin announces a member joining the video call to the rest of the room.
func (h *Hub) VideoJoin(c *Client, p VideoPresencePayload) {
	_, _, _, others, ok := h.roomState(c)
	if !ok {
		return
	}
	for _, m := range others {
		m.send(EventUserVideoJoined, VideoUserPayload{UserID: p.UserID})
	}
}

// VideoLeave announces a member leaving the video call.
func (h *Hub) VideoLeave(c *Client, p VideoPresencePayload) {
	_, _, _, others, ok := h.roomState(c)
	if !ok {
		return
	}
	for _, m := range others {
		m.send(EventUserVideoLeft, VideoUserPayload{UserID: p.UserID})
	}
}

// RelayOffer unicasts an SDP offer to the target identity's live connection.
// A disconnected target drops the message silently; the sender is not told.
func (h *Hub) RelayOffer(c *Client, p SignalPayload) {
	target, ok := h.signalTarget(c, p.TargetUserID)
	if !ok {
		return
	}
	target.send(EventVideoOffer, SignalBroadcast{Offer: p.Offer, FromUserID: c.User.ID})
}

// RelayAnswer unicasts an SDP answer to the target identity.
func (h *Hub) RelayAnswer(c *Client, p SignalPayload) {
	target, ok := h.signalTarget(c, p.TargetUserID)
	if !ok {
		return
	}
	target.send(EventVideoAnswer, SignalBroadcast{Answer: p.Answer, FromUserID: c.User.ID})
}

// RelayICECandidate unicasts an ICE candidate to the target identity.
func (h *Hub) RelayICECandidate(c *Client, p SignalPayload) {
	target, ok := h.signalTarget(c, p.TargetUserID)
	if !ok {
		return
	}
	target.send(EventICECandidate, SignalBroadcast{Candidate: p.Candidate, FromUserID: c.User.ID})
}

// signalTarget resolves a unicast signaling target through the registry.
func (h *Hub) signalTarget(c *Client, targetUserID int64) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.room == "" {
		return nil, false
	}
	target := h.clients[targetUserID]
	if target == nil {
		return nil, false
	}
	return target, true
}

// RoomMembers returns the currently-connected members of a room in join
// order. Empty slice for unknown or empty rooms.
func (h *Hub) RoomMembers(code string) []MemberInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.presence[code]
	if p == nil {
		return []MemberInfo{}
	}
	return p.memberInfos()
}

// FindConnection reports whether an identity has a live connection.
func (h *Hub) FindConnection(userID int64) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[userID]
	return c, ok
}

package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"
)

// fakeConn records every frame written to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []outEvent
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v.(outEvent))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		types = append(types, fr.Type)
	}
	return types
}

func (f *fakeConn) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fr := range f.frames {
		if fr.Type == event {
			n++
		}
	}
	return n
}

// lastPayload returns the payload of the most recent frame of the given type.
func (f *fakeConn) lastPayload(t *testing.T, event string) any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Type == event {
			return f.frames[i].Payload
		}
	}
	t.Fatalf("no %s frame received, got %v", event, f.frames)
	return nil
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// fakeStore is an in-memory RoomStore recording every write.
type fakeStore struct {
	mu        sync.Mutex
	rooms     map[string]*model.Room
	roster    []model.RoomParticipant
	drawings  []model.RoomDrawingEvent
	chats     []model.RoomChatMessage
	snapshots map[int64]string
	clears    []int64
}

func newFakeStore(rooms ...*model.Room) *fakeStore {
	fs := &fakeStore{
		rooms:     make(map[string]*model.Room),
		snapshots: make(map[int64]string),
	}
	for _, r := range rooms {
		fs.rooms[r.Code] = r
	}
	return fs
}

func (fs *fakeStore) FindRoomByCode(_ context.Context, code string) (*model.Room, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.rooms[code]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (fs *fakeStore) AddRosterMember(_ context.Context, roomID, userID int64, role string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.roster = append(fs.roster, model.RoomParticipant{RoomID: roomID, UserID: userID, Role: role})
	return nil
}

func (fs *fakeStore) AppendDrawingEvent(_ context.Context, roomID, userID int64, data string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.drawings = append(fs.drawings, model.RoomDrawingEvent{RoomID: roomID, UserID: userID, Action: model.ActionDraw, Data: data})
	return nil
}

func (fs *fakeStore) AppendChatMessage(_ context.Context, msg *model.RoomChatMessage) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.chats = append(fs.chats, *msg)
	return nil
}

func (fs *fakeStore) SetCanvasSnapshot(_ context.Context, roomID int64, canvasData string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.snapshots[roomID] = canvasData
	return nil
}

func (fs *fakeStore) ClearCanvas(_ context.Context, roomID, userID int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.snapshots[roomID] = ""
	fs.clears = append(fs.clears, roomID)
	return nil
}

func (fs *fakeStore) RecentChatMessages(_ context.Context, roomID int64, limit int) ([]model.RoomChatMessage, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []model.RoomChatMessage
	for _, m := range fs.chats {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func newTestHub(t *testing.T, rooms ...*model.Room) (*Hub, *fakeStore, func()) {
	t.Helper()
	fs := newFakeStore(rooms...)
	w := store.NewAsyncWriter(fs, nil, 64)
	h := New(fs, w, Config{})
	var once sync.Once
	drain := func() { once.Do(w.Close) }
	t.Cleanup(drain)
	return h, fs, drain
}

func connect(h *Hub, id int64, name string) (*Client, *fakeConn) {
	fc := &fakeConn{}
	c := NewClient(Identity{ID: id, Username: name}, fc)
	h.Register(c)
	return c, fc
}

func activeRoom(code string) *model.Room {
	return &model.Room{ID: 1, Code: code, Name: "test room", HostID: 1, IsActive: true, MaxParticipants: 10}
}

func fp(v float64) *float64 { return &v }

func memberIDs(users []MemberInfo) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestJoinRoomSendsStateToJoiner(t *testing.T) {
	room := activeRoom("AB12CD34")
	room.CanvasData = "data:image/png;base64,abc"
	h, _, _ := newTestHub(t, room)

	c, fc := connect(h, 1, "alice")
	if err := h.JoinRoom(c, "AB12CD34"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	types := fc.eventTypes()
	want := []string{EventCanvasData, EventRoomUsers, EventRoomUsers}
	if len(types) != len(want) {
		t.Fatalf("got events %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d = %s, want %s (all: %v)", i, types[i], want[i], types)
		}
	}

	canvas := fc.lastPayload(t, EventCanvasData).(CanvasDataPayload)
	if canvas.CanvasData != room.CanvasData {
		t.Errorf("canvas data = %q, want %q", canvas.CanvasData, room.CanvasData)
	}
	roster := fc.lastPayload(t, EventRoomUsers).(RoomUsersPayload)
	if got := memberIDs(roster.Users); len(got) != 1 || got[0] != 1 {
		t.Errorf("roster = %v, want [1]", got)
	}
}

func TestJoinRoomNotifiesExistingMembers(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	fc1.reset()

	c2, _ := connect(h, 2, "bob")
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	joined := fc1.lastPayload(t, EventUserJoined).(UserEventPayload)
	if joined.User.ID != 2 || joined.User.Username != "bob" {
		t.Errorf("user-joined = %+v, want bob (2)", joined.User)
	}
	roster := fc1.lastPayload(t, EventRoomUsers).(RoomUsersPayload)
	if got := memberIDs(roster.Users); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("roster = %v, want [1 2] in join order", got)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	inactive := activeRoom("DEAD0000")
	inactive.IsActive = false
	full := &model.Room{ID: 2, Code: "FULL0000", IsActive: true, MaxParticipants: 1}
	h, _, _ := newTestHub(t, inactive, full)

	c1, _ := connect(h, 1, "alice")
	if err := h.JoinRoom(c1, "NOPE0000"); err != ErrRoomNotFound {
		t.Errorf("unknown room: got %v, want ErrRoomNotFound", err)
	}
	if err := h.JoinRoom(c1, "DEAD0000"); err != ErrRoomInactive {
		t.Errorf("inactive room: got %v, want ErrRoomInactive", err)
	}
	if err := h.JoinRoom(c1, "FULL0000"); err != nil {
		t.Fatalf("first join of capacity-1 room: %v", err)
	}
	c2, _ := connect(h, 2, "bob")
	if err := h.JoinRoom(c2, "FULL0000"); err != ErrRoomFull {
		t.Errorf("over capacity: got %v, want ErrRoomFull", err)
	}
	if h.clients[2] == nil {
		t.Error("rejected join must not disconnect the client")
	}
	if c2.Room() != "" {
		t.Errorf("rejected join left client in room %q", c2.Room())
	}
}

func TestJoinRoomRosterMemberBypassesCapacity(t *testing.T) {
	room := &model.Room{
		ID:              3,
		Code:            "FULL1111",
		IsActive:        true,
		MaxParticipants: 1,
		Participants:    []model.RoomParticipant{{RoomID: 3, UserID: 2}},
	}
	h, fs, drain := newTestHub(t, room)

	c1, _ := connect(h, 1, "alice")
	if err := h.JoinRoom(c1, "FULL1111"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	c2, _ := connect(h, 2, "bob")
	if err := h.JoinRoom(c2, "FULL1111"); err != nil {
		t.Fatalf("returning roster member must bypass capacity, got %v", err)
	}

	drain()
	// alice was new, bob already on the roster
	if len(fs.roster) != 1 || fs.roster[0].UserID != 1 {
		t.Errorf("roster writes = %+v, want one entry for user 1", fs.roster)
	}
}

func TestRoomSwitchLeavesPriorRoom(t *testing.T) {
	roomA := &model.Room{ID: 1, Code: "AAAA1111", IsActive: true, MaxParticipants: 10}
	roomB := &model.Room{ID: 2, Code: "BBBB2222", IsActive: true, MaxParticipants: 10}
	h, _, _ := newTestHub(t, roomA, roomB)

	c1, _ := connect(h, 1, "alice")
	c3, fc3 := connect(h, 3, "carol")
	if err := h.JoinRoom(c1, "AAAA1111"); err != nil {
		t.Fatalf("alice join A: %v", err)
	}
	if err := h.JoinRoom(c3, "AAAA1111"); err != nil {
		t.Fatalf("carol join A: %v", err)
	}
	fc3.reset()

	if err := h.JoinRoom(c1, "BBBB2222"); err != nil {
		t.Fatalf("alice switch to B: %v", err)
	}

	if c1.Room() != "BBBB2222" {
		t.Errorf("alice room = %q, want BBBB2222", c1.Room())
	}
	if got := memberIDs(h.RoomMembers("AAAA1111")); len(got) != 1 || got[0] != 3 {
		t.Errorf("room A members = %v, want [3]", got)
	}
	if got := memberIDs(h.RoomMembers("BBBB2222")); len(got) != 1 || got[0] != 1 {
		t.Errorf("room B members = %v, want [1]", got)
	}

	left := fc3.lastPayload(t, EventUserLeft).(UserEventPayload)
	if left.User.ID != 1 {
		t.Errorf("user-left = %+v, want alice (1)", left.User)
	}
	roster := fc3.lastPayload(t, EventRoomUsers).(RoomUsersPayload)
	if got := memberIDs(roster.Users); len(got) != 1 || got[0] != 3 {
		t.Errorf("room A roster after switch = %v, want [3]", got)
	}
	// room switch is not a transport disconnect
	if fc3.count(EventUserVideoLeft) != 0 {
		t.Error("room switch must not announce video departure")
	}
}

func TestRapidDoubleJoin(t *testing.T) {
	roomA := &model.Room{ID: 1, Code: "AAAA1111", IsActive: true, MaxParticipants: 10}
	roomB := &model.Room{ID: 2, Code: "BBBB2222", IsActive: true, MaxParticipants: 10}
	h, _, _ := newTestHub(t, roomA, roomB)

	c, _ := connect(h, 1, "alice")
	if err := h.JoinRoom(c, "AAAA1111"); err != nil {
		t.Fatalf("join A: %v", err)
	}
	if err := h.JoinRoom(c, "BBBB2222"); err != nil {
		t.Fatalf("join B: %v", err)
	}

	if len(h.RoomMembers("AAAA1111")) != 0 {
		t.Error("user still present in first room after immediate switch")
	}
	if got := memberIDs(h.RoomMembers("BBBB2222")); len(got) != 1 || got[0] != 1 {
		t.Errorf("room B members = %v, want [1]", got)
	}
	h.mu.Lock()
	_, leaked := h.presence["AAAA1111"]
	h.mu.Unlock()
	if leaked {
		t.Error("empty presence set for first room was not discarded")
	}
}

func TestDrawingRelay(t *testing.T) {
	h, fs, drain := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.RelayDrawing(c1, DrawingPayload{Kind: DrawStart, X: fp(10), Y: fp(20), Tool: "pen", Color: "#000000", BrushSize: 3})

	if fc1.count(EventDrawing) != 0 {
		t.Error("drawing echoed back to the sender")
	}
	out := fc2.lastPayload(t, EventDrawing).(DrawingBroadcast)
	if out.UserID != 1 || out.Username != "alice" {
		t.Errorf("broadcast sender tag = %d/%s, want 1/alice", out.UserID, out.Username)
	}
	if out.Kind != DrawStart || *out.X != 10 || *out.Y != 20 {
		t.Errorf("broadcast payload = %+v", out)
	}

	drain()
	if len(fs.drawings) != 1 {
		t.Fatalf("drawing history entries = %d, want 1", len(fs.drawings))
	}
	var stored DrawingPayload
	if err := json.Unmarshal([]byte(fs.drawings[0].Data), &stored); err != nil {
		t.Fatalf("stored drawing is not valid JSON: %v", err)
	}
	if stored.Kind != DrawStart || stored.Tool != "pen" {
		t.Errorf("stored drawing = %+v", stored)
	}
}

func TestDrawingRejectsMissingCoordinate(t *testing.T) {
	h, fs, drain := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.RelayDrawing(c1, DrawingPayload{Kind: DrawStart, X: fp(10)}) // no y

	errPayload := fc1.lastPayload(t, EventError).(ErrorPayload)
	if errPayload.Message != "Invalid drawing data" {
		t.Errorf("error message = %q", errPayload.Message)
	}
	if fc2.count(EventDrawing) != 0 {
		t.Error("invalid drawing was broadcast")
	}
	drain()
	if len(fs.drawings) != 0 {
		t.Error("invalid drawing was persisted")
	}
}

func TestChatBroadcastAndSanitize(t *testing.T) {
	h, fs, drain := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.RelayChat(c1, "  <script>alert(1)</script>hello <b>world</b>  ")

	for _, fc := range []*fakeConn{fc1, fc2} {
		msg := fc.lastPayload(t, EventChatMessage).(ChatBroadcast)
		if msg.Message != "hello world" {
			t.Errorf("chat message = %q, want %q", msg.Message, "hello world")
		}
		if msg.UserID != 1 || msg.Username != "alice" {
			t.Errorf("chat sender = %d/%s", msg.UserID, msg.Username)
		}
		if msg.Timestamp.IsZero() {
			t.Error("chat message missing server timestamp")
		}
	}

	drain()
	if len(fs.chats) != 1 || fs.chats[0].Message != "hello world" {
		t.Errorf("persisted chats = %+v", fs.chats)
	}
}

func TestChatRejectedWhenEmptyAfterSanitize(t *testing.T) {
	h, fs, drain := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("join: %v", err)
	}
	fc1.reset()

	h.RelayChat(c1, "<script>alert(1)</script>")

	errPayload := fc1.lastPayload(t, EventError).(ErrorPayload)
	if errPayload.Message != "Invalid message" {
		t.Errorf("error message = %q", errPayload.Message)
	}
	if fc1.count(EventChatMessage) != 0 {
		t.Error("empty message was broadcast")
	}
	drain()
	if len(fs.chats) != 0 {
		t.Error("empty message was persisted")
	}
}

func TestClearBoard(t *testing.T) {
	room := activeRoom("AB12CD34")
	h, fs, drain := newTestHub(t, room)

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.ClearBoard(c1)

	// the sender hears it too
	for _, fc := range []*fakeConn{fc1, fc2} {
		cleared := fc.lastPayload(t, EventBoardCleared).(BoardClearedPayload)
		if cleared.UserID != 1 || cleared.Username != "alice" {
			t.Errorf("board-cleared = %+v", cleared)
		}
	}

	drain()
	if len(fs.clears) != 1 || fs.clears[0] != room.ID {
		t.Errorf("clear writes = %v, want [%d]", fs.clears, room.ID)
	}
}

func TestSaveCanvas(t *testing.T) {
	room := activeRoom("AB12CD34")
	h, fs, drain := newTestHub(t, room)

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.SaveCanvas(c1, "data:image/png;base64,xyz")

	if len(fc1.eventTypes()) != 0 || len(fc2.eventTypes()) != 0 {
		t.Error("save-canvas must not broadcast")
	}
	drain()
	if fs.snapshots[room.ID] != "data:image/png;base64,xyz" {
		t.Errorf("snapshot = %q", fs.snapshots[room.ID])
	}
}

func TestCursorRelayOthersOnly(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.RelayCursor(c1, CursorPayload{X: 42, Y: 7})

	if fc1.count(EventCursorMove) != 0 {
		t.Error("cursor echoed back to the sender")
	}
	out := fc2.lastPayload(t, EventCursorMove).(CursorBroadcast)
	if out.UserID != 1 || out.X != 42 || out.Y != 7 {
		t.Errorf("cursor broadcast = %+v", out)
	}
}

func TestSignalingUnicast(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.RelayOffer(c1, SignalPayload{TargetUserID: 2, Offer: offer})

	out := fc2.lastPayload(t, EventVideoOffer).(SignalBroadcast)
	if out.FromUserID != 1 {
		t.Errorf("fromUserId = %d, want 1", out.FromUserID)
	}
	if string(out.Offer) != string(offer) {
		t.Errorf("offer body = %s", out.Offer)
	}
	if fc1.count(EventVideoOffer) != 0 {
		t.Error("offer echoed back to the sender")
	}

	fc2.reset()
	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	h.RelayAnswer(c2, SignalPayload{TargetUserID: 1, Answer: answer})
	back := fc1.lastPayload(t, EventVideoAnswer).(SignalBroadcast)
	if back.FromUserID != 2 || string(back.Answer) != string(answer) {
		t.Errorf("answer broadcast = %+v", back)
	}
}

func TestSignalingToDisconnectedTargetIsDropped(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, _ := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	h.Disconnect(c2)
	fc1.reset()

	h.RelayICECandidate(c1, SignalPayload{TargetUserID: 2, Candidate: json.RawMessage(`{}`)})

	// silent drop, no error back to the sender
	if got := fc1.eventTypes(); len(got) != 0 {
		t.Errorf("expected no frames, got %v", got)
	}
}

func TestDisconnectCleansUp(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, _ := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc2.reset()

	h.Disconnect(c1)

	if _, ok := h.FindConnection(1); ok {
		t.Error("disconnected user still in registry")
	}
	left := fc2.lastPayload(t, EventUserLeft).(UserEventPayload)
	if left.User.ID != 1 {
		t.Errorf("user-left = %+v", left.User)
	}
	video := fc2.lastPayload(t, EventUserVideoLeft).(VideoUserPayload)
	if video.UserID != 1 {
		t.Errorf("user-video-left = %+v", video)
	}
	roster := fc2.lastPayload(t, EventRoomUsers).(RoomUsersPayload)
	if got := memberIDs(roster.Users); len(got) != 1 || got[0] != 2 {
		t.Errorf("roster after disconnect = %v, want [2]", got)
	}

	h.Disconnect(c2)
	h.mu.Lock()
	leaked := len(h.presence)
	h.mu.Unlock()
	if leaked != 0 {
		t.Errorf("presence sets leaked after last disconnect: %d", leaked)
	}
}

func TestReconnectReplacesOldConnection(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, _ := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc2.reset()

	oldConn := c1.conn.(*fakeConn)
	c1b, _ := connect(h, 1, "alice") // second tab

	if !oldConn.closed {
		t.Error("replaced connection was not closed")
	}
	got, ok := h.FindConnection(1)
	if !ok || got != c1b {
		t.Error("registry does not hold the new connection")
	}
	// the old connection's room was vacated
	left := fc2.lastPayload(t, EventUserLeft).(UserEventPayload)
	if left.User.ID != 1 {
		t.Errorf("user-left = %+v", left.User)
	}
	if got := memberIDs(h.RoomMembers("AB12CD34")); len(got) != 1 || got[0] != 2 {
		t.Errorf("room members = %v, want [2]", got)
	}

	// the old connection's eventual transport teardown must not clear the
	// slot the new connection owns
	h.Disconnect(c1)
	if _, ok := h.FindConnection(1); !ok {
		t.Error("stale disconnect removed the replacement connection")
	}

	if err := h.JoinRoom(c1b, "AB12CD34"); err != nil {
		t.Fatalf("rejoin on new connection: %v", err)
	}
	if got := memberIDs(h.RoomMembers("AB12CD34")); len(got) != 2 {
		t.Errorf("room members = %v, want both users", got)
	}
}

func TestEventsOutsideRoomAreDropped(t *testing.T) {
	h, fs, drain := newTestHub(t, activeRoom("AB12CD34"))

	c, fc := connect(h, 1, "alice")

	h.RelayDrawing(c, DrawingPayload{Kind: DrawStart, X: fp(1), Y: fp(2)})
	h.RelayChat(c, "hello")
	h.RelayCursor(c, CursorPayload{X: 1, Y: 2})
	h.ClearBoard(c)
	h.SaveCanvas(c, "data")
	h.RelayOffer(c, SignalPayload{TargetUserID: 1})

	if got := fc.eventTypes(); len(got) != 0 {
		t.Errorf("expected no frames before joining a room, got %v", got)
	}
	drain()
	if len(fs.drawings)+len(fs.chats)+len(fs.clears)+len(fs.snapshots) != 0 {
		t.Error("events outside a room were persisted")
	}
}

func TestEndToEndTwoUserSession(t *testing.T) {
	room := activeRoom("AB12CD34")
	room.CanvasData = "snapshot"
	h, _, _ := newTestHub(t, room)

	c1, fc1 := connect(h, 1, "alice")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}

	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	canvas := fc2.lastPayload(t, EventCanvasData).(CanvasDataPayload)
	if canvas.CanvasData != "snapshot" {
		t.Errorf("bob canvas sync = %q", canvas.CanvasData)
	}

	fc1.reset()
	fc2.reset()
	h.RelayDrawing(c2, DrawingPayload{Kind: DrawMove, X: fp(5), Y: fp(6)})
	stroke := fc1.lastPayload(t, EventDrawing).(DrawingBroadcast)
	if stroke.UserID != 2 {
		t.Errorf("stroke tagged with user %d, want 2", stroke.UserID)
	}

	fc1.reset()
	h.Disconnect(c2)
	left := fc1.lastPayload(t, EventUserLeft).(UserEventPayload)
	if left.User.ID != 2 {
		t.Errorf("user-left = %+v", left.User)
	}
	roster := fc1.lastPayload(t, EventRoomUsers).(RoomUsersPayload)
	if got := memberIDs(roster.Users); len(got) != 1 || got[0] != 1 {
		t.Errorf("final roster = %v, want [1]", got)
	}
}

func TestVideoPresenceBroadcast(t *testing.T) {
	h, _, _ := newTestHub(t, activeRoom("AB12CD34"))

	c1, fc1 := connect(h, 1, "alice")
	c2, fc2 := connect(h, 2, "bob")
	if err := h.JoinRoom(c1, "AB12CD34"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if err := h.JoinRoom(c2, "AB12CD34"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	fc1.reset()
	fc2.reset()

	h.VideoJoin(c1, VideoPresencePayload{RoomID: "AB12CD34", UserID: 1})
	if fc1.count(EventUserVideoJoined) != 0 {
		t.Error("video join echoed back to the sender")
	}
	joined := fc2.lastPayload(t, EventUserVideoJoined).(VideoUserPayload)
	if joined.UserID != 1 {
		t.Errorf("user-video-joined = %+v", joined)
	}

	h.VideoLeave(c1, VideoPresencePayload{RoomID: "AB12CD34", UserID: 1})
	leftVideo := fc2.lastPayload(t, EventUserVideoLeft).(VideoUserPayload)
	if leftVideo.UserID != 1 {
		t.Errorf("user-video-left = %+v", leftVideo)
	}
}

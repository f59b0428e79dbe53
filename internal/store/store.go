package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whiteboard-backend/internal/model"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomStore is the persistence contract the relay depends on. The coordinator
// never creates or deletes rooms; it only reads them and appends to their
// history, transcript and roster.
type RoomStore interface {
	FindRoomByCode(ctx context.Context, code string) (*model.Room, error)
	AddRosterMember(ctx context.Context, roomID, userID int64, role string) error
	AppendDrawingEvent(ctx context.Context, roomID, userID int64, data string) error
	AppendChatMessage(ctx context.Context, msg *model.RoomChatMessage) error
	SetCanvasSnapshot(ctx context.Context, roomID int64, canvasData string) error
	ClearCanvas(ctx context.Context, roomID, userID int64) error
	RecentChatMessages(ctx context.Context, roomID int64, limit int) ([]model.RoomChatMessage, error)
}

// GormStore RoomStore의 PostgreSQL 구현
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindRoomByCode loads a room with its persisted roster.
func (s *GormStore) FindRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Where("code = ?", code).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room %s: %w", code, err)
	}
	return &room, nil
}

// AddRosterMember adds a user to the all-time roster. Rejoining is a no-op.
func (s *GormStore) AddRosterMember(ctx context.Context, roomID, userID int64, role string) error {
	participant := model.RoomParticipant{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&participant).Error
}

func (s *GormStore) AppendDrawingEvent(ctx context.Context, roomID, userID int64, data string) error {
	event := model.RoomDrawingEvent{
		RoomID: roomID,
		UserID: userID,
		Action: model.ActionDraw,
		Data:   data,
	}
	return s.db.WithContext(ctx).Create(&event).Error
}

func (s *GormStore) AppendChatMessage(ctx context.Context, msg *model.RoomChatMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// SetCanvasSnapshot overwrites the stored snapshot unconditionally. Last write
// wins; the snapshot is only a checkpoint for late joiners.
func (s *GormStore) SetCanvasSnapshot(ctx context.Context, roomID int64, canvasData string) error {
	return s.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ?", roomID).
		Update("canvas_data", canvasData).Error
}

// ClearCanvas resets the snapshot and appends a clear marker to the history.
func (s *GormStore) ClearCanvas(ctx context.Context, roomID, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Room{}).
			Where("id = ?", roomID).
			Update("canvas_data", "").Error; err != nil {
			return err
		}
		marker := model.RoomDrawingEvent{
			RoomID: roomID,
			UserID: userID,
			Action: model.ActionClear,
			Data:   "{}",
		}
		return tx.Create(&marker).Error
	})
}

// RecentChatMessages returns the last limit messages in chronological order.
func (s *GormStore) RecentChatMessages(ctx context.Context, roomID int64, limit int) ([]model.RoomChatMessage, error) {
	var messages []model.RoomChatMessage
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

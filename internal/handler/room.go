package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
)

// RoomHandler 룸 CRUD 핸들러
type RoomHandler struct {
	db              *gorm.DB
	cache           *cache.RedisClient // optional
	defaultCapacity int
	recentChatCount int
}

// NewRoomHandler RoomHandler 생성
func NewRoomHandler(db *gorm.DB, redisClient *cache.RedisClient, defaultCapacity, recentChatCount int) *RoomHandler {
	return &RoomHandler{
		db:              db,
		cache:           redisClient,
		defaultCapacity: defaultCapacity,
		recentChatCount: recentChatCount,
	}
}

// generateRoomCode 4바이트 난수 기반 룸 코드 (예: "A3F9B210")
func generateRoomCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type roomSummary struct {
	ID               int64     `json:"id"`
	RoomID           string    `json:"roomId"`
	Name             string    `json:"name"`
	Host             userInfo  `json:"host"`
	ParticipantCount int       `json:"participantCount"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
}

type userInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func toUserInfo(u *model.User) userInfo {
	info := userInfo{ID: u.ID, Username: u.Username}
	if u.Avatar != nil {
		info.Avatar = *u.Avatar
	}
	return info
}

// CreateRoom 새 룸 생성 (생성자가 호스트)
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "room name is required"})
	}

	code, err := generateRoomCode()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to generate room code"})
	}

	room := model.Room{
		Code:            code,
		Name:            req.Name,
		HostID:          userID,
		IsActive:        true,
		MaxParticipants: h.defaultCapacity,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		host := model.RoomParticipant{
			RoomID: room.ID,
			UserID: userID,
			Role:   model.RoleHost,
		}
		return tx.Create(&host).Error
	})
	if err != nil {
		log.Printf("[Room] create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create room"})
	}

	var host model.User
	h.db.First(&host, userID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"room": roomSummary{
			ID:               room.ID,
			RoomID:           room.Code,
			Name:             room.Name,
			Host:             toUserInfo(&host),
			ParticipantCount: 1,
			IsActive:         room.IsActive,
			CreatedAt:        room.CreatedAt,
		},
	})
}

// GetRoom 룸 상세 조회 (캔버스 스냅샷 + 최근 채팅 포함)
func (h *RoomHandler) GetRoom(c *fiber.Ctx) error {
	code := c.Params("roomId")

	var room model.Room
	err := h.db.
		Preload("Host").
		Preload("Participants.User").
		Where("code = ?", code).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "room not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch room"})
	}

	messages := h.recentChat(c, &room)

	participants := make([]fiber.Map, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, fiber.Map{
			"user":     toUserInfo(&p.User),
			"role":     p.Role,
			"joinedAt": p.JoinedAt,
		})
	}

	return c.JSON(fiber.Map{
		"room": fiber.Map{
			"id":           room.ID,
			"roomId":       room.Code,
			"name":         room.Name,
			"host":         toUserInfo(&room.Host),
			"participants": participants,
			"canvasData":   room.CanvasData,
			"chatMessages": messages,
			"isActive":     room.IsActive,
			"createdAt":    room.CreatedAt,
		},
	})
}

// recentChat reads the transcript tail, cache first, then Postgres.
func (h *RoomHandler) recentChat(c *fiber.Ctx, room *model.Room) []model.RoomChatMessage {
	if h.cache != nil {
		messages, err := h.cache.RecentChatMessages(c.Context(), room.Code, int64(h.recentChatCount))
		if err == nil && len(messages) > 0 {
			return messages
		}
	}

	var messages []model.RoomChatMessage
	err := h.db.
		Where("room_id = ?", room.ID).
		Order("id DESC").
		Limit(h.recentChatCount).
		Find(&messages).Error
	if err != nil {
		log.Printf("[Room] chat history fetch failed: %v", err)
		return []model.RoomChatMessage{}
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}

// JoinRoom 룸 명단 가입 (HTTP, 접속 전 사전 확인용)
func (h *RoomHandler) JoinRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	code := c.Params("roomId")

	var room model.Room
	err := h.db.Preload("Participants").Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "room not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch room"})
	}

	if !room.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "room is not active"})
	}

	if !room.HasParticipant(userID) {
		if len(room.Participants) >= room.MaxParticipants {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "room is full"})
		}
		participant := model.RoomParticipant{
			RoomID: room.ID,
			UserID: userID,
			Role:   model.RoleParticipant,
		}
		if err := h.db.Create(&participant).Error; err != nil {
			log.Printf("[Room] roster join failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to join room"})
		}
	}

	return c.JSON(fiber.Map{"roomId": room.Code})
}

// ListMyRooms 내가 참여한 룸 목록
func (h *RoomHandler) ListMyRooms(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var rooms []model.Room
	err := h.db.
		Preload("Host").
		Joins("JOIN room_participants rp ON rp.room_id = rooms.id").
		Where("rp.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch rooms"})
	}

	summaries := make([]roomSummary, 0, len(rooms))
	for i := range rooms {
		var count int64
		h.db.Model(&model.RoomParticipant{}).Where("room_id = ?", rooms[i].ID).Count(&count)
		summaries = append(summaries, roomSummary{
			ID:               rooms[i].ID,
			RoomID:           rooms[i].Code,
			Name:             rooms[i].Name,
			Host:             toUserInfo(&rooms[i].Host),
			ParticipantCount: int(count),
			IsActive:         rooms[i].IsActive,
			CreatedAt:        rooms[i].CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"rooms": summaries})
}

package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"whiteboard-backend/internal/database"
	"whiteboard-backend/internal/model"
)

// 운영 점검용: 스키마와 룸/히스토리 현황을 출력한다.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer database.Close(db)

	fmt.Println("✅ Connected to database")
	fmt.Println()

	tables := []string{"users", "rooms", "room_participants", "room_drawing_events", "room_chat_messages"}
	fmt.Println("📋 Tables:")
	for _, table := range tables {
		var exists bool
		query := `
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_name = ?
			)
		`
		if err := db.Raw(query, table).Scan(&exists).Error; err != nil {
			log.Fatal("Failed to check table: ", err)
		}
		mark := "❌"
		if exists {
			mark = "✅"
		}
		fmt.Printf("  %s %s\n", mark, table)
	}
	fmt.Println()

	type RoomStats struct {
		Total    int64
		Active   int64
		Inactive int64
	}
	var stats RoomStats
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN is_active THEN 1 END) as active,
			COUNT(CASE WHEN NOT is_active THEN 1 END) as inactive
		FROM rooms
	`
	if err := db.Raw(query).Scan(&stats).Error; err != nil {
		log.Fatal("Failed to get room statistics: ", err)
	}

	fmt.Println("📈 Room Statistics:")
	fmt.Printf("  - Total rooms: %d\n", stats.Total)
	fmt.Printf("  - Active: %d\n", stats.Active)
	fmt.Printf("  - Inactive: %d\n", stats.Inactive)
	fmt.Println()

	var rooms []model.Room
	if err := db.Order("id DESC").Limit(10).Find(&rooms).Error; err != nil {
		log.Fatal("Failed to get recent rooms: ", err)
	}

	fmt.Println("🏠 Recent Rooms (last 10):")
	for _, r := range rooms {
		var participants, drawings, chats int64
		db.Model(&model.RoomParticipant{}).Where("room_id = ?", r.ID).Count(&participants)
		db.Model(&model.RoomDrawingEvent{}).Where("room_id = ?", r.ID).Count(&drawings)
		db.Model(&model.RoomChatMessage{}).Where("room_id = ?", r.ID).Count(&chats)
		fmt.Printf("  - %s (%s): participants=%d drawings=%d chats=%d active=%v\n",
			r.Code, r.Name, participants, drawings, chats, r.IsActive)
	}
}

package main

import (
	"log"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/database"
	"whiteboard-backend/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	// 데이터베이스 연결
	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("🚨 Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Redis 연결 (선택적 - 최근 채팅 캐시, 없어도 서비스 동작)
	var redisClient *cache.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️ Redis unavailable, continuing without chat cache: %v", err)
			redisClient = nil
		}
	} else {
		log.Println("ℹ️ REDIS_ADDR not set, chat cache disabled")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// 서버 생성 및 시작
	srv := server.New(cfg, db, redisClient)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("🚨 Server failed to start: %v", err)
	}
}

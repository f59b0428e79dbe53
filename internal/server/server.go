package server

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"whiteboard-backend/internal/auth"
	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/handler"
	"whiteboard-backend/internal/hub"
	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/store"
)

// Server Fiber 서버 래퍼
type Server struct {
	app            *fiber.App
	cfg            *config.Config
	db             *gorm.DB
	writer         *store.AsyncWriter
	hub            *hub.Hub
	roomHandler    *handler.RoomHandler
	boardWSHandler *handler.BoardWSHandler
	healthHandler  *handler.HealthHandler
	jwtManager     *auth.JWTManager
}

// New 새 서버 인스턴스 생성. 레지스트리/프레즌스 상태는 여기서 한 번 조립되어
// 핸들러로 주입된다 (전역 싱글톤 없음).
func New(cfg *config.Config, db *gorm.DB, redisClient *cache.RedisClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:         "Whiteboard Realtime Backend",
		ServerHeader:    "Fiber",
		StrictRouting:   true,
		CaseSensitive:   true,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		Prefork:         false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
		BodyLimit:       10 * 1024 * 1024, // canvas snapshots are data URLs
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	roomStore := store.NewGormStore(db)
	writer := store.NewAsyncWriter(roomStore, redisClient, cfg.Room.WriteQueueSize)
	boardHub := hub.New(roomStore, writer, hub.Config{
		DefaultCapacity: cfg.Room.DefaultCapacity,
		ChatMaxLength:   cfg.Room.ChatMaxLength,
	})

	return &Server{
		app:            app,
		cfg:            cfg,
		db:             db,
		writer:         writer,
		hub:            boardHub,
		roomHandler:    handler.NewRoomHandler(db, redisClient, cfg.Room.DefaultCapacity, cfg.Room.RecentChatCount),
		boardWSHandler: handler.NewBoardWSHandler(boardHub),
		healthHandler:  handler.NewHealthHandler(db, redisClient),
		jwtManager:     jwtManager,
	}
}

// Hub returns the live session coordinator.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter (룸 생성 남용 방지)
	createLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Room 라우트 그룹 (인증 필요)
	roomGroup := s.app.Group("/api/rooms", auth.AuthMiddleware(s.jwtManager))
	roomGroup.Post("/", createLimiter, s.roomHandler.CreateRoom)
	roomGroup.Get("/", s.roomHandler.ListMyRooms)
	roomGroup.Get("/:roomId", s.roomHandler.GetRoom)
	roomGroup.Post("/:roomId/join", s.roomHandler.JoinRoom)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// 화이트보드 WebSocket 엔드포인트: 업그레이드 전에 토큰 검증 및
	// 사용자 조회를 마쳐야 한다 (룸 동작 이전에 인증 필수).
	s.app.Get("/ws/board", func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			token = c.Cookies("access_token")
		}
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		claims, err := s.jwtManager.ValidateAccessToken(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		// 알 수 없는 사용자도 인증 실패로 처리
		var user model.User
		if err := s.db.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		c.Locals("userID", user.ID)
		c.Locals("username", user.Username)
		if user.Avatar != nil {
			c.Locals("avatar", *user.Avatar)
		}

		return c.Next()
	}, websocket.New(s.boardWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Whiteboard Realtime Backend starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/board", s.cfg.Server.Port)

	err := s.app.Listen(s.cfg.Server.Port)

	// 서버 종료 후 남은 기록 큐 비우기
	s.writer.Close()

	return err
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}

package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard-backend/internal/model"
)

const (
	chatKeyTTL    = 24 * time.Hour
	chatKeyMaxLen = 200 // keep only the tail of the transcript hot
)

// RedisClient wraps the Redis client for the recent-chat cache. The cache is
// optional: the durable transcript lives in Postgres, Redis only keeps the
// tail hot for room detail reads.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client and verifies connectivity.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &RedisClient{client: client}, nil
}

func chatKey(roomCode string) string {
	return "room:" + roomCode + ":chat"
}

// AddChatMessage appends a message to the room's recent-chat list.
func (r *RedisClient) AddChatMessage(ctx context.Context, roomCode string, msg *model.RoomChatMessage) error {
	key := chatKey(roomCode)

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -chatKeyMaxLen, -1)
	pipe.Expire(ctx, key, chatKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[Redis] Failed to cache chat message: %v", err)
		return err
	}

	return nil
}

// RecentChatMessages retrieves the last count messages for a room.
func (r *RedisClient) RecentChatMessages(ctx context.Context, roomCode string, count int64) ([]model.RoomChatMessage, error) {
	key := chatKey(roomCode)

	results, err := r.client.LRange(ctx, key, -count, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]model.RoomChatMessage, 0, len(results))
	for _, data := range results {
		var msg model.RoomChatMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Ping 연결 상태 확인
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// InvalidateRoom drops the cached transcript for a room.
func (r *RedisClient) InvalidateRoom(ctx context.Context, roomCode string) error {
	return r.client.Del(ctx, chatKey(roomCode)).Err()
}

// Close Redis 연결 종료
func (r *RedisClient) Close() error {
	return r.client.Close()
}

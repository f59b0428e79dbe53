package store

import (
	"context"
	"log"
	"time"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
)

// writeJob 지연 기록 작업
type writeJob struct {
	name string
	fn   func(ctx context.Context) error
}

// AsyncWriter decouples live broadcasts from durable writes. Writes are
// fire-and-forget, at-most-once: the queue is bounded, a full queue drops the
// write with a log line, and failures are logged but never retried or surfaced
// to the room. A stalled store only delays history, never relay.
type AsyncWriter struct {
	store RoomStore
	cache *cache.RedisClient // optional, may be nil
	jobs  chan writeJob
	done  chan struct{}
}

// NewAsyncWriter starts the single worker goroutine.
func NewAsyncWriter(s RoomStore, c *cache.RedisClient, queueSize int) *AsyncWriter {
	w := &AsyncWriter{
		store: s,
		cache: c,
		jobs:  make(chan writeJob, queueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncWriter) run() {
	for job := range w.jobs {
		// No deadline on store writes: a slow store degrades history
		// freshness, not correctness.
		if err := job.fn(context.Background()); err != nil {
			log.Printf("[Writer] %s failed: %v", job.name, err)
		}
	}
	close(w.done)
}

func (w *AsyncWriter) enqueue(name string, fn func(ctx context.Context) error) {
	select {
	case w.jobs <- writeJob{name: name, fn: fn}:
	default:
		log.Printf("[Writer] queue full, dropping %s", name)
	}
}

// AddRosterMember 명단 추가 기록
func (w *AsyncWriter) AddRosterMember(roomID, userID int64, role string) {
	w.enqueue("roster member", func(ctx context.Context) error {
		return w.store.AddRosterMember(ctx, roomID, userID, role)
	})
}

// AppendDrawingEvent 드로잉 이벤트 기록
func (w *AsyncWriter) AppendDrawingEvent(roomID, userID int64, data string) {
	w.enqueue("drawing event", func(ctx context.Context) error {
		return w.store.AppendDrawingEvent(ctx, roomID, userID, data)
	})
}

// AppendChatMessage 채팅 기록 (DB + 최근 채팅 캐시)
func (w *AsyncWriter) AppendChatMessage(roomCode string, msg *model.RoomChatMessage) {
	w.enqueue("chat message", func(ctx context.Context) error {
		if err := w.store.AppendChatMessage(ctx, msg); err != nil {
			return err
		}
		if w.cache != nil {
			cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := w.cache.AddChatMessage(cacheCtx, roomCode, msg); err != nil {
				log.Printf("[Writer] chat cache update failed: %v", err)
			}
		}
		return nil
	})
}

// SetCanvasSnapshot 캔버스 스냅샷 저장
func (w *AsyncWriter) SetCanvasSnapshot(roomID int64, canvasData string) {
	w.enqueue("canvas snapshot", func(ctx context.Context) error {
		return w.store.SetCanvasSnapshot(ctx, roomID, canvasData)
	})
}

// ClearCanvas 캔버스 초기화 기록
func (w *AsyncWriter) ClearCanvas(roomID, userID int64) {
	w.enqueue("canvas clear", func(ctx context.Context) error {
		return w.store.ClearCanvas(ctx, roomID, userID)
	})
}

// Close drains queued writes and stops the worker.
func (w *AsyncWriter) Close() {
	close(w.jobs)
	<-w.done
}

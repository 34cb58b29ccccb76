// Package fanout 维护每个房间的推送订阅者。
//
// Publish 从不阻塞：订阅者的缓冲区写满时直接将其踢出并关闭通道，
// 客户端重连后会重新拿到完整快照。调用方在房间锁内调用 Publish，
// 因此同一房间的事件按照提交顺序进入每个订阅者的缓冲区。
package fanout

import (
	"errors"
	"sync"

	"imposter-room-be/internal/service/dto"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("推送中心已关闭")

type Subscriber struct {
	ID       string
	PlayerID string

	ch        chan dto.Event
	closeOnce sync.Once
}

// Events 在订阅者被移除、踢出或房间关闭时关闭
func (s *Subscriber) Events() <-chan dto.Event {
	return s.ch
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

type Hub struct {
	roomCode   string
	bufferSize int

	mu     sync.Mutex
	subs   map[string]*Subscriber
	closed bool
}

func NewHub(roomCode string, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &Hub{
		roomCode:   roomCode,
		bufferSize: bufferSize,
		subs:       make(map[string]*Subscriber),
	}
}

// Subscribe 注册订阅者，并把 initial 作为它收到的第一条事件
func (h *Hub) Subscribe(id, playerID string, initial dto.Event) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscriber{
		ID:       id,
		PlayerID: playerID,
		ch:       make(chan dto.Event, h.bufferSize),
	}
	sub.ch <- initial

	h.subs[id] = sub

	zap.L().Debug(
		"订阅推送",
		zap.String("room_code", h.roomCode),
		zap.String("player_id", playerID),
		zap.Int("subscribers", len(h.subs)),
	)

	return sub, nil
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.subs[sub.ID]; ok && cur == sub {
		delete(h.subs, sub.ID)
	}
	sub.close()
}

// Publish 把事件非阻塞地投递给所有订阅者，返回被踢出的订阅者数量
func (h *Hub) Publish(ev dto.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}

	evicted := 0
	for id, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(h.subs, id)
			sub.close()
			evicted++

			zap.L().Warn(
				"订阅者缓冲区已满，断开推送",
				zap.String("room_code", h.roomCode),
				zap.String("player_id", sub.PlayerID),
				zap.Uint64("version", ev.Version),
			)
		}
	}

	return evicted
}

// Close 关闭所有订阅者，之后的 Subscribe 返回 ErrHubClosed
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.close()
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

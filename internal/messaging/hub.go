package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
)

// Hub is an in-process Publisher that keeps the most recent events and
// broadcasts each one to live subscribers (the websocket stream).
type Hub struct {
	mu          sync.RWMutex
	recent      []*types.Event
	capacity    int
	subscribers map[int]chan []byte
	nextID      int
	logger      *logrus.Logger
}

func NewHub(capacity int, logger *logrus.Logger) *Hub {
	if capacity < 1 {
		capacity = 100
	}
	return &Hub{
		capacity:    capacity,
		subscribers: make(map[int]chan []byte),
		logger:      logger,
	}
}

func (h *Hub) Publish(ctx context.Context, event *types.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.recent, event)
	if len(h.recent) > h.capacity {
		h.recent = h.recent[len(h.recent)-h.capacity:]
	}

	for id, ch := range h.subscribers {
		select {
		case ch <- body:
		default:
			h.logger.Warnf("Event subscriber %d is slow, dropping %s", id, event.Type)
		}
	}
	return nil
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan []byte, buffer)
	h.subscribers[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(c)
		}
	}
}

// Recent returns up to n of the latest events, oldest first
func (h *Hub) Recent(n int) []*types.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.recent) {
		n = len(h.recent)
	}
	out := make([]*types.Event, n)
	copy(out, h.recent[len(h.recent)-n:])
	return out
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close drops all subscribers
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
	return nil
}

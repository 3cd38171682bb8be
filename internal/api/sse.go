package api

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type sseMessage struct {
	event string
	data  interface{}
}

// eventHub 按镜头分发生成完成事件
type eventHub struct {
	mu      sync.Mutex
	clients map[string][]chan sseMessage

	closeOnce sync.Once
	closed    chan struct{}
}

func newEventHub() *eventHub {
	return &eventHub{
		clients: make(map[string][]chan sseMessage),
		closed:  make(chan struct{}),
	}
}

// done 在 close 后关闭，长连接据此退出
func (h *eventHub) done() <-chan struct{} {
	return h.closed
}

// close 断开所有订阅，服务关闭时调用
func (h *eventHub) close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.clients = make(map[string][]chan sseMessage)
		h.mu.Unlock()
		close(h.closed)
	})
}

func (h *eventHub) register(shotID string, ch chan sseMessage) {
	if h == nil || ch == nil || shotID == "" {
		return
	}
	select {
	case <-h.closed:
		return
	default:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[shotID] = append(h.clients[shotID], ch)
}

func (h *eventHub) unregister(shotID string, target chan sseMessage) {
	if h == nil || target == nil || shotID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.clients[shotID]
	if len(current) == 0 {
		return
	}

	remaining := current[:0]
	for _, ch := range current {
		if ch == target {
			continue
		}
		remaining = append(remaining, ch)
	}

	if len(remaining) == 0 {
		delete(h.clients, shotID)
		return
	}
	h.clients[shotID] = remaining
}

func (h *eventHub) subscribers(shotID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[shotID])
}

func (h *eventHub) publish(shotID string, msg sseMessage) {
	if h == nil || shotID == "" {
		return
	}

	h.mu.Lock()
	channels := append([]chan sseMessage(nil), h.clients[shotID]...)
	h.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- msg:
		default:
			logrus.WithFields(logrus.Fields{
				"shot_id": shotID,
				"event":   msg.event,
			}).Warn("dropping sse message due to slow consumer")
		}
	}
}

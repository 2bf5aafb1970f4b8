// Package realtime pushes change notifications and city detections to map
// clients over WebSocket.
package realtime

import (
	"context"
	"sync"

	"lo/internal/logging"
	"lo/internal/metrics"
)

const (
	MessageTypeMessagesChanged = "messages_changed"
	MessageTypeCity            = "city"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeError           = "error"
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// MessagesChanged tells clients to refetch active messages.
type MessagesChanged struct {
	Created int      `json:"created"`
	Sources []string `json:"sources"`
}

type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed from Serve returning until the next Serve

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// start opens the hub for a Serve call and returns the channel that Serve
// closes on exit. A hub may be served again after Serve returns.
func (h *Hub) start() chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		h.done = make(chan struct{})
	default:
	}
	return h.done
}

func (h *Hub) stopped() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// stop disconnects every client and rejects new ones until the next Serve.
func (h *Hub) stop(done chan struct{}) {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.closeSend()
	}
	close(done)
	h.mu.Unlock()
	metrics.RealtimeClients.Set(0)
}

// Serve runs the hub until ctx is done, then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	done := h.start()
	defer h.stop(done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.RealtimeClients.Set(float64(n))
			logging.Debug().Int("clients", n).Msg("websocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.closeSend()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.RealtimeClients.Set(float64(n))
			logging.Debug().Int("clients", n).Msg("websocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.trySend(msg) {
					logging.Warn().Uint64("client", c.id).Msg("client send buffer full; dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyMessagesChanged never blocks; when the broadcast queue is full the
// notification is dropped, since a pending one already triggers a refetch.
func (h *Hub) NotifyMessagesChanged(created int, sources []string) {
	msg := Message{Type: MessageTypeMessagesChanged, Data: MessagesChanged{Created: created, Sources: sources}}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Msg("realtime broadcast queue full")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped():
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped():
	}
}

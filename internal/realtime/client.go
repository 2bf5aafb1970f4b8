package realtime

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lo/internal/geo"
	"lo/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var clientIDCounter atomic.Uint64

// inbound is a message sent by the map UI.
type inbound struct {
	Type string  `json:"type"`
	Kind string  `json:"kind"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// CityUpdate is sent whenever the detected city for a client's map center
// changes. City is null when the center is outside every event radius.
type CityUpdate struct {
	City          *geo.City `json:"city"`
	DistanceMiles float64   `json:"distance_miles,omitempty"`
}

type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	tracker *geo.CenterTracker

	mu     sync.Mutex
	send   chan Message
	closed bool
}

// trySend queues msg without blocking. It reports false when the client is
// gone or its buffer is full.
func (c *Client) trySend(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) sendError(msg string) {
	c.trySend(Message{Type: MessageTypeError, Data: map[string]string{"error": msg}})
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.tracker.Close()
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Uint64("client", c.id).Msg("websocket read")
			}
			return
		}

		switch in.Type {
		case MessageTypePing:
			c.trySend(Message{Type: MessageTypePong})
		case "map_center":
			kind, err := geo.ParseMapInteraction(in.Kind)
			if err != nil {
				c.sendError(err.Error())
				continue
			}
			center := geo.Point{Lat: in.Lat, Lng: in.Lng}
			if !center.Valid() {
				c.sendError("center out of range")
				continue
			}
			c.tracker.Observe(kind, center)
		default:
			c.sendError("unknown message type")
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades requests to WebSocket clients of hub. Each client gets its
// own center tracker over cities.
type Handler struct {
	Hub         *Hub
	Cities      *geo.Registry
	EventRadius float64
	Debounce    time.Duration
	// CheckOrigin vets the upgrade request; nil allows any origin.
	CheckOrigin func(r *http.Request) bool
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.CheckOrigin == nil || h.CheckOrigin(r)
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  h.Hub,
		conn: conn,
		send: make(chan Message, 32),
	}
	c.tracker = geo.NewCenterTracker(h.Cities, h.EventRadius, h.Debounce, func(d geo.Detection) {
		c.trySend(Message{Type: MessageTypeCity, Data: CityUpdate{City: d.City, DistanceMiles: d.DistanceMiles}})
	})

	if !h.Hub.add(c) {
		c.tracker.Close()
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

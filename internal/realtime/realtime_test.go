package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lo/internal/geo"
)

type received struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	cities, err := geo.DefaultRegistry()
	require.NoError(t, err)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Serve(ctx) }()

	srv := httptest.NewServer(&Handler{Hub: hub, Cities: cities, EventRadius: 50, Debounce: 10 * time.Millisecond})
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() > before }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_BroadcastsMessagesChanged(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, hub, srv)
	b := dial(t, hub, srv)

	hub.NotifyMessagesChanged(3, []string{"ticketmaster"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, MessageTypeMessagesChanged, msg.Type)
		assert.EqualValues(t, 3, msg.Data["created"])
	}
}

func TestClient_ReportsCityChanges(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "map_center", "kind": "idle", "lat": 34.0522, "lng": -118.2437}))
	msg := read(t, conn)
	assert.Equal(t, MessageTypeCity, msg.Type)
	city, ok := msg.Data["city"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "los-angeles", city["id"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "map_center", "kind": "center_changed", "lat": 0, "lng": 0}))
	msg = read(t, conn)
	assert.Equal(t, MessageTypeCity, msg.Type)
	assert.Nil(t, msg.Data["city"])
}

func TestClient_RejectsBadInput(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "map_center", "kind": "drag", "lat": 1, "lng": 1}))
	assert.Equal(t, MessageTypeError, read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, MessageTypePong, read(t, conn).Type)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_ServesAgainAfterStop(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Serve(ctx) }()

	first := &Client{hub: hub, send: make(chan Message, 1)}
	require.True(t, hub.add(first))
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	assert.Zero(t, hub.ClientCount())
	assert.False(t, hub.add(&Client{hub: hub, send: make(chan Message, 1)}))
	_, open := <-first.send
	assert.False(t, open)
	hub.remove(first)

	ctx2, cancel2 := context.WithCancel(context.Background())
	t.Cleanup(cancel2)
	go func() { _ = hub.Serve(ctx2) }()

	second := &Client{hub: hub, send: make(chan Message, 1)}
	require.Eventually(t, func() bool { return hub.add(second) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.NotifyMessagesChanged(1, []string{"ticketmaster"})
	select {
	case msg := <-second.send:
		assert.Equal(t, MessageTypeMessagesChanged, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast after restart")
	}

	hub.remove(second)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHandler_RejectsDisallowedOrigin(t *testing.T) {
	cities, err := geo.DefaultRegistry()
	require.NoError(t, err)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Serve(ctx) }()

	srv := httptest.NewServer(&Handler{
		Hub:         hub,
		Cities:      cities,
		EventRadius: 50,
		CheckOrigin: func(r *http.Request) bool { return r.Header.Get("Origin") == "https://lo.app" },
	})
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://other.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://lo.app"}})
	require.NoError(t, err)
	_ = conn.Close()
}

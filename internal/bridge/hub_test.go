package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgrab/pkg/messaging"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) messaging.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev messaging.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	hub, srv := newTestHub(t)

	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForClients(t, hub, 2)

	ev, err := messaging.NewEvent(messaging.EventDownloadCompleted, map[string]string{"filename": "a.jpg"})
	require.NoError(t, err)
	hub.BroadcastEvent(ev)

	for _, conn := range []*websocket.Conn{first, second} {
		got := readEvent(t, conn)
		assert.Equal(t, messaging.EventDownloadCompleted, got.Type)
	}
}

func TestHubSurvivesClientDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)

	gone := dialHub(t, srv)
	live := dialHub(t, srv)
	waitForClients(t, hub, 2)

	gone.Close()
	waitForClients(t, hub, 1)

	ev, err := messaging.NewEvent(messaging.EventDownloadProgress, map[string]int{"completed": 1})
	require.NoError(t, err)
	hub.BroadcastEvent(ev)

	got := readEvent(t, live)
	assert.Equal(t, messaging.EventDownloadProgress, got.Type)
}

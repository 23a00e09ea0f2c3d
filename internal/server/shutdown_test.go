package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Shutdown must drain both kinds of live connection: one with a session and
// one still idle, which only the hub's client set knows about. The read pumps
// race their unregister handoff against the stopped hub loop here, so this
// also covers the fallback that closes locally instead of blocking.
func TestShutdownWithLiveConnections(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register(NewClient(conn, h, r.RemoteAddr))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	dial := func() *websocket.Conn {
		headers := http.Header{}
		headers.Set("Origin", "http://localhost:8080")
		conn, resp, err := websocket.DefaultDialer.Dial(url, headers)
		if resp != nil {
			_ = resp.Body.Close()
		}
		req.NoError(err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	joined := dial()
	req.NoError(joined.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join","payload":{"roomId":"wind-down","userName":"Alice"}}`)))

	// Reading the roster proves the join was fully processed.
	req.NoError(joined.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := joined.ReadMessage()
	req.NoError(err)

	idle := dial()

	// Give the hub loop a beat to register the idle connection.
	time.Sleep(50 * time.Millisecond)

	req.NoError(h.Shutdown(2 * time.Second))

	// Both sockets are closed from the server side.
	for _, conn := range []*websocket.Conn{joined, idle} {
		req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}

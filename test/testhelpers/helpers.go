// Package testhelpers provides shared utilities for exercising the relay over
// real WebSocket connections in integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/roomrelay/server/internal/server"
)

var startHubOnce sync.Once

// StartRelay brings up the relay's routes on an httptest server, starting the
// hub on first use. The server is torn down with the test.
func StartRelay(t *testing.T) *httptest.Server {
	t.Helper()

	startHubOnce.Do(server.StartHub)
	ts := httptest.NewServer(server.SetupRoutes())
	t.Cleanup(ts.Close)
	return ts
}

// WSURL rewrites an httptest server URL into its websocket endpoint.
func WSURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// Dial opens a websocket connection with an allowed origin header. The
// connection is closed with the test.
func Dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Envelope is the client-side view of a wire frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SendJoin sends a join envelope.
func SendJoin(t *testing.T, conn *websocket.Conn, roomID, userName string) {
	t.Helper()
	SendRaw(t, conn, []byte(`{"type":"join","payload":{"roomId":"`+roomID+`","userName":"`+userName+`"}}`))
}

// SendChat sends a chat envelope.
func SendChat(t *testing.T, conn *websocket.Conn, message string) {
	t.Helper()

	frame, err := json.Marshal(map[string]any{
		"type":    "chat",
		"payload": map[string]string{"message": message},
	})
	require.NoError(t, err)
	SendRaw(t, conn, frame)
}

// SendRaw writes one text frame as-is.
func SendRaw(t *testing.T, conn *websocket.Conn, frame []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// ReadEnvelope reads the next frame, failing the test if none arrives within
// two seconds.
func ReadEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

// ExpectEnvelope reads the next frame and asserts its tag before decoding the
// payload into dst.
func ExpectEnvelope(t *testing.T, conn *websocket.Conn, wantType string, dst any) {
	t.Helper()

	env := ReadEnvelope(t, conn)
	require.Equal(t, wantType, env.Type)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Payload, dst))
	}
}

// AssertSilence asserts that no frame arrives within the window. The gorilla
// connection does not survive a read timeout, so only call this as the last
// read on a connection.
func AssertSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(window)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got: %s", raw)
	}
}

// UserListPayload mirrors the user-list payload for assertions.
type UserListPayload struct {
	Users []string `json:"users"`
}

// UserEventPayload mirrors the user-joined/user-left payloads.
type UserEventPayload struct {
	UserName string `json:"userName"`
}

// ChatPayload mirrors the chat payload.
type ChatPayload struct {
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

// ErrorPayload mirrors the error payload.
type ErrorPayload struct {
	Message string `json:"message"`
}

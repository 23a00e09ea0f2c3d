package server

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client with a buffered send queue and no transport,
// enough to exercise the registry, broadcaster, and hub without a socket.
func newTestClient() *Client {
	id := uuid.NewString()
	return &Client{
		id:   id,
		send: make(chan []byte, 16),
		log:  slog.With("client_id", id),
	}
}

// receivedFrame is the client-side view of an outbound envelope.
type receivedFrame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// drainOne pops the next queued frame off a client's send buffer.
func drainOne(t *testing.T, c *Client) receivedFrame {
	t.Helper()

	select {
	case raw := <-c.send:
		var f receivedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	default:
		t.Fatal("expected a queued frame, found none")
		return receivedFrame{}
	}
}

// requireNoFrame asserts the client's send buffer is empty.
func requireNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case raw, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected frame queued: %s", raw)
		}
	default:
	}
}

// payloadAs decodes a received frame's payload into the given shape.
func payloadAs[T any](t *testing.T, f receivedFrame) T {
	t.Helper()

	var p T
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p
}

package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/roomrelay/server/test/testhelpers"
)

func TestChatBeforeJoinIsRefused(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	conn := testhelpers.Dial(t, testhelpers.WSURL(ts))
	testhelpers.SendChat(t, conn, "anyone there?")

	var errPayload testhelpers.ErrorPayload
	testhelpers.ExpectEnvelope(t, conn, "error", &errPayload)
	req.NotEmpty(errPayload.Message)

	// The connection is still usable: a join afterwards works normally.
	testhelpers.SendJoin(t, conn, room(t), "Alice")
	var roster testhelpers.UserListPayload
	testhelpers.ExpectEnvelope(t, conn, "user-list", &roster)
	req.Equal([]string{"Alice"}, roster.Users)
}

func TestMalformedFrameDoesNotDisturbAnyone(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)
	roomID := room(t)

	alice := testhelpers.Dial(t, testhelpers.WSURL(ts))
	testhelpers.SendJoin(t, alice, roomID, "Alice")
	testhelpers.ExpectEnvelope(t, alice, "user-list", nil)

	mallory := testhelpers.Dial(t, testhelpers.WSURL(ts))
	testhelpers.SendRaw(t, mallory, []byte("this is not json"))

	// The offender gets an error envelope and stays connected.
	testhelpers.ExpectEnvelope(t, mallory, "error", nil)
	testhelpers.SendJoin(t, mallory, roomID, "Mallory")
	var roster testhelpers.UserListPayload
	testhelpers.ExpectEnvelope(t, mallory, "user-list", &roster)
	req.Equal([]string{"Alice", "Mallory"}, roster.Users)

	// Alice saw nothing but the ordinary join.
	var joined testhelpers.UserEventPayload
	testhelpers.ExpectEnvelope(t, alice, "user-joined", &joined)
	req.Equal("Mallory", joined.UserName)
}

func TestServerOnlyTagsAreRefused(t *testing.T) {
	ts := testhelpers.StartRelay(t)

	conn := testhelpers.Dial(t, testhelpers.WSURL(ts))
	testhelpers.SendRaw(t, conn, []byte(`{"type":"user-left","payload":{"userName":"Alice"}}`))

	testhelpers.ExpectEnvelope(t, conn, "error", nil)
}

func TestJoinWithMissingFieldsIsRefused(t *testing.T) {
	ts := testhelpers.StartRelay(t)

	conn := testhelpers.Dial(t, testhelpers.WSURL(ts))
	testhelpers.SendRaw(t, conn, []byte(`{"type":"join","payload":{"roomId":"ABC123"}}`))

	testhelpers.ExpectEnvelope(t, conn, "error", nil)
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	resp, err := http.Get(ts.URL + "/")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Contains(string(body), "running")
}

func TestWebSocketEndpointRejectsPost(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	resp, err := http.Post(ts.URL+"/ws", "text/plain", strings.NewReader("hello"))
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestUpgradeRejectsDisallowedOrigin(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://evil.example.com")

	conn, resp, err := dialer.Dial(testhelpers.WSURL(ts), headers)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	req.Error(err)
	req.Nil(conn)
}

func TestTestPageServed(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	resp, err := http.Get(ts.URL + "/test")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(resp.Header.Get("Content-Type"), "text/html")
}

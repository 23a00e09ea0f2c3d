// Package server exposes the HTTP surface: the WebSocket upgrade endpoint, a
// health check, and a built-in page for poking at the room protocol.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler upgrades the request and hands the connection to the hub.
// The connection arrives idle; it holds no session until its first join frame.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	hub.Register(NewClient(conn, hub, r.RemoteAddr))
}

// HealthHandler reports that the relay is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Room relay is running!")
}

// TestPageHandler serves a minimal page speaking the room protocol: join a
// room under a name, watch the roster, send and receive chat lines.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		slog.Warn("writing test page", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        #roster { color: #555; margin: 10px 0; }
        input[type="text"] { padding: 5px; margin-right: 5px; }
        button { padding: 5px 15px; }
        .system { color: gray; font-style: italic; }
        .chat { color: black; }
        .error { color: red; }
    </style>
</head>
<body>
    <h1>Room Relay Test</h1>
    <div>
        <input type="text" id="room" placeholder="Room code">
        <input type="text" id="name" placeholder="Your name">
        <button onclick="join()">Join</button>
    </div>
    <div id="roster"></div>
    <div id="log"></div>
    <div>
        <input type="text" id="message" placeholder="Type a message..." disabled>
        <button id="send" onclick="sendChat()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        const log = document.getElementById('log');

        function addLine(text, cls) {
            const div = document.createElement('div');
            div.className = cls || 'system';
            div.textContent = text;
            log.appendChild(div);
            log.scrollTop = log.scrollHeight;
        }

        function connect() {
            if (ws) return Promise.resolve();
            return new Promise((resolve, reject) => {
                ws = new WebSocket('ws://' + location.host + '/ws');
                ws.onopen = resolve;
                ws.onerror = reject;
                ws.onclose = () => { addLine('disconnected'); ws = null; };
                ws.onmessage = (event) => {
                    const env = JSON.parse(event.data);
                    switch (env.type) {
                        case 'user-list':
                            document.getElementById('roster').textContent = 'In room: ' + env.payload.users.join(', ');
                            break;
                        case 'user-joined':
                            addLine(env.payload.userName + ' joined');
                            break;
                        case 'user-left':
                            addLine(env.payload.userName + ' left');
                            break;
                        case 'chat':
                            addLine(env.payload.userName + ': ' + env.payload.message, 'chat');
                            break;
                        case 'error':
                            addLine('error: ' + env.payload.message, 'error');
                            break;
                    }
                };
            });
        }

        async function join() {
            const roomId = document.getElementById('room').value.trim();
            const userName = document.getElementById('name').value.trim();
            if (!roomId || !userName) return;
            await connect();
            ws.send(JSON.stringify({type: 'join', payload: {roomId, userName}}));
            document.getElementById('message').disabled = false;
            document.getElementById('send').disabled = false;
        }

        function sendChat() {
            const input = document.getElementById('message');
            if (!ws || !input.value) return;
            ws.send(JSON.stringify({type: 'chat', payload: {message: input.value}}));
            input.value = '';
        }

        document.getElementById('message').addEventListener('keypress', (e) => {
            if (e.key === 'Enter') sendChat();
        });
    </script>
</body>
</html>`

// Package server wires the HTTP handlers into a ServeMux.
package server

import "net/http"

// SetupRoutes returns a mux with the health check, the WebSocket endpoint,
// and the built-in test page.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}

// Package server constructs and runs the HTTP server fronting the relay.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer builds an http.Server with production timeout defaults. The
// timeouts only guard the initial handshake; upgraded connections manage their
// own deadlines in the pumps.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub launches the global hub loop. Call before serving traffic.
func StartHub() {
	go hub.Run()
	slog.Info("hub started")
}

// StartServer listens and serves until the server is shut down or fails.
func StartServer(server *http.Server) error {
	slog.Info("server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer drains the HTTP server, bounded by the timeout.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	slog.Info("http server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown", "error", err)
		return err
	}
	return nil
}

// GetHub returns the global hub for shutdown coordination and tests.
func GetHub() *Hub {
	return hub
}

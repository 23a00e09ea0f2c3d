// Package server fans envelopes out to rooms through the Broadcaster, which
// borrows read access to the registry for the duration of each broadcast.
package server

import "log/slog"

// Broadcaster delivers one frame to every member of a room. Delivery is
// best-effort and per-member independent: one member's dead or saturated
// connection never blocks the others.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster wraps a registry for room fan-out.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast encodes the envelope once and attempts one non-blocking send per
// member of the room, skipping exclude when set. Members whose send failed are
// returned so the caller can de-register them; the broadcast itself never
// errors.
func (b *Broadcaster) Broadcast(roomID string, env Envelope, exclude *Client) []*Client {
	frame := Encode(env)

	var failed []*Client
	for _, s := range b.registry.MembersOf(roomID) {
		if exclude != nil && s.client == exclude {
			continue
		}
		if !s.client.trySend(frame) {
			failed = append(failed, s.client)
		}
	}

	if len(failed) > 0 {
		slog.Debug("broadcast had unreachable members",
			"room", roomID, "type", env.Type, "failed", len(failed))
	}
	return failed
}

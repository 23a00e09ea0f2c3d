// Package server implements a WebSocket relay for ephemeral, code-named chat
// rooms.
//
// Each connection carries JSON envelopes of the form {"type": tag, "payload":
// {...}}. A client joins a room with a display name, receives the room roster,
// and from then on every chat line it sends is fanned out to the whole room.
// Rooms are implicit: they exist exactly as long as they have members. Nothing
// is persisted and no delivery guarantee stronger than best-effort is made.
//
// The implementation is split across the envelope codec, the session registry,
// the room broadcaster, the per-connection client pumps, and the hub that ties
// them together.
package server

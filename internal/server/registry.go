// Package server tracks which connection sits in which room via the Registry
// type, the single authoritative owner of all live sessions.
package server

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Session binds one live connection to a room and a display name. Sessions are
// immutable once created; a re-join replaces the whole record.
type Session struct {
	client *Client
	Room   string
	Name   string

	// seq orders sessions by arrival so rosters read out in join order.
	seq uint64
}

// Registry maps connections to sessions and rooms to their member sets. Rooms
// are implicit: a room entry appears with its first member and is deleted with
// its last one, so an empty registry holds no room state at all.
//
// Every operation takes the registry lock, which makes membership mutations
// and the snapshots used for broadcasting mutually exclusive.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Client]*Session
	rooms    map[string]map[*Client]*Session
	nextSeq  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[*Client]*Session),
		rooms:    make(map[string]map[*Client]*Session),
	}
}

// Upsert inserts a session for the connection, atomically replacing any
// existing one. The replaced session is returned so the caller can announce
// the departure to its old room; nil means the connection had not joined yet.
func (r *Registry) Upsert(c *Client, roomID, name string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := r.detach(c)

	s := &Session{client: c, Room: roomID, Name: name, seq: r.nextSeq}
	r.nextSeq++
	r.sessions[c] = s

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Client]*Session)
		r.rooms[roomID] = members
	}
	members[c] = s
	return replaced
}

// Remove detaches the connection's session and returns it, or nil if the
// connection never joined. Removing twice is a no-op, not a fault.
func (r *Registry) Remove(c *Client) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detach(c)
}

// detach unlinks a connection from both maps. Caller holds the write lock.
func (r *Registry) detach(c *Client) *Session {
	s, ok := r.sessions[c]
	if !ok {
		return nil
	}
	delete(r.sessions, c)

	if members, ok := r.rooms[s.Room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, s.Room)
		}
	}
	return s
}

// Find returns the session for a connection, or nil if it has not joined.
func (r *Registry) Find(c *Client) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[c]
}

// MembersOf returns a snapshot of the room's sessions ordered by join time.
// The snapshot is safe to iterate after the lock is released.
func (r *Registry) MembersOf(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := lo.Values(r.rooms[roomID])
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })
	return members
}

// Roster returns the display names of a room's members in join order, the
// shape sent to a client in the user-list envelope.
func (r *Registry) Roster(roomID string) []string {
	return lo.Map(r.MembersOf(roomID), func(s *Session, _ int) string { return s.Name })
}

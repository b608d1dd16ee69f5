// Package rooms tracks named rendezvous rooms and their members.
//
// A room holds at most two members. The first member to name a room creates
// it and becomes the room's creator; the second joins; everyone after that is
// turned away until a slot frees up.
package rooms

import "sync"

// MaxMembers is the hard cap on room occupancy. The signaling protocol is a
// strictly pairwise exchange, so this is not configurable.
const MaxMembers = 2

// Outcome reports what JoinOrCreate did for a participant.
type Outcome string

const (
	// OutcomeCreated means the room did not exist and the participant now
	// owns its first slot.
	OutcomeCreated Outcome = "created"
	// OutcomeJoined means the participant took the room's second slot.
	OutcomeJoined Outcome = "joined"
	// OutcomeFull means both slots were held by other participants.
	OutcomeFull Outcome = "full"
)

type room struct {
	// members in join order. members[0] is the creator.
	members []string
}

func (rm *room) indexOf(id string) int {
	for i, m := range rm.members {
		if m == id {
			return i
		}
	}
	return -1
}

// Registry is a concurrency-safe collection of rooms keyed by name.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// JoinOrCreate places participant id into the named room, creating the room
// if it does not exist. Calling it again with a member already in the room is
// a no-op that reports the member's original outcome.
func (r *Registry) JoinOrCreate(name, id string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		r.rooms[name] = &room{members: []string{id}}
		return OutcomeCreated
	}

	switch idx := rm.indexOf(id); {
	case idx == 0:
		return OutcomeCreated
	case idx > 0:
		return OutcomeJoined
	}

	if len(rm.members) >= MaxMembers {
		return OutcomeFull
	}

	rm.members = append(rm.members, id)
	return OutcomeJoined
}

// Leave removes participant id from the named room. It reports the remaining
// member, if any, so the caller can notify them. Empty rooms are deleted, so
// a room name can be reused with fresh creator semantics once both members
// are gone.
func (r *Registry) Leave(name, id string) (other string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[name]
	if !exists {
		return "", false
	}

	idx := rm.indexOf(id)
	if idx < 0 {
		return "", false
	}

	rm.members = append(rm.members[:idx], rm.members[idx+1:]...)
	if len(rm.members) == 0 {
		delete(r.rooms, name)
		return "", true
	}
	return rm.members[0], true
}

// OtherMember returns the peer sharing the room with participant id.
func (r *Registry) OtherMember(name, id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return "", false
	}
	for _, m := range rm.members {
		if m != id {
			return m, true
		}
	}
	return "", false
}

// Members returns a copy of the room's member list in join order.
func (r *Registry) Members(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return nil
	}
	out := make([]string, len(rm.members))
	copy(out, rm.members)
	return out
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

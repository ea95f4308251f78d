package hub

import "sync"

// Rooms is the membership registry. Readers take snapshots; a connection's
// teardown removes it from every room under one write lock.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[*Conn]struct{}
	joined  map[*Conn]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[*Conn]struct{}),
		joined:  make(map[*Conn]map[string]struct{}),
	}
}

// Join adds c to room and reports whether it was not already a member.
func (r *Rooms) Join(c *Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[room]
	if !ok {
		set = make(map[*Conn]struct{})
		r.members[room] = set
	}
	if _, ok := set[c]; ok {
		return false
	}
	set[c] = struct{}{}

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[c] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// RemoveAll drops c from every room it joined and returns those rooms.
func (r *Rooms) RemoveAll(c *Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.joined[c] {
		left = append(left, room)
		if set, ok := r.members[room]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(r.members, room)
			}
		}
	}
	delete(r.joined, c)
	return left
}

func (r *Rooms) IsMember(c *Conn, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][c]
	return ok
}

// Members returns a snapshot of the room's connections.
func (r *Rooms) Members(room string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[room]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) RoomsOf(c *Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.joined[c]))
	for room := range r.joined[c] {
		out = append(out, room)
	}
	return out
}

func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

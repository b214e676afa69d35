package main

import "sync"

// RoomRegistry owns every live room, keyed by id, remembering creation order
// for quick-match lookups.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	order    []string
	maxRooms int
}

// NewRoomRegistry creates an empty registry. maxRooms <= 0 means unlimited.
func NewRoomRegistry(maxRooms int) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
	}
}

// Add registers a room. Returns ErrServerFull when the cap is reached.
func (rr *RoomRegistry) Add(r *Room) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.maxRooms > 0 && len(rr.rooms) >= rr.maxRooms {
		return ErrServerFull
	}
	if _, ok := rr.rooms[r.ID]; !ok {
		rr.order = append(rr.order, r.ID)
	}
	rr.rooms[r.ID] = r
	return nil
}

// Get returns a room by id
func (rr *RoomRegistry) Get(id string) *Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.rooms[id]
}

// FindJoinable returns the oldest non-passcode room waiting in LOBBY for a
// second player.
func (rr *RoomRegistry) FindJoinable() *Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	for _, id := range rr.order {
		if r := rr.rooms[id]; r != nil && r.Joinable() {
			return r
		}
	}
	return nil
}

// Delete removes a room by id
func (rr *RoomRegistry) Delete(id string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if _, ok := rr.rooms[id]; !ok {
		return
	}
	delete(rr.rooms, id)
	for i, oid := range rr.order {
		if oid == id {
			rr.order = append(rr.order[:i], rr.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live rooms
func (rr *RoomRegistry) Len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}

// List returns the live rooms in creation order
func (rr *RoomRegistry) List() []*Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	list := make([]*Room, 0, len(rr.order))
	for _, id := range rr.order {
		list = append(list, rr.rooms[id])
	}
	return list
}

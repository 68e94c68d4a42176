// Package room holds the room data model and the registry that maps room ids
// and connections to rooms.
package room

import (
	"sort"
	"sync"

	"github.com/judgegodwins/chess-relay/game"
	"github.com/rs/zerolog/log"
)

// Registry owns the id → room table and the connection → room index.
//
// Lock order: a room's lock may be held while calling into the registry,
// never the other way around.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	members     map[ConnID]string
	newPosition func() *game.Position
}

func NewRegistry(newPosition func() *game.Position) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		members:     make(map[ConnID]string),
		newPosition: newPosition,
	}
}

// GetOrCreate returns the room for id, creating it when absent. Concurrent
// first callers for the same id all observe the room created by whichever
// acquired the write lock first. created reports whether this call made it.
func (r *Registry) GetOrCreate(id string) (rm *Room, created bool) {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return rm, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[id]; ok {
		return rm, false
	}
	rm = newRoom(id, r.newPosition())
	r.rooms[id] = rm
	log.Info().Str("module", "room.registry").Str("room", id).Msg("room created")
	return rm, true
}

func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	return rm, ok
}

// Remove deletes the entry for id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id)
}

// Destroy closes rm and removes it from the table if it is still the room
// registered under its id. The caller must hold rm's lock.
func (r *Registry) Destroy(rm *Room) {
	rm.close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[rm.id]; ok && cur == rm {
		r.remove(rm.id)
	}
}

func (r *Registry) remove(id string) {
	if _, ok := r.rooms[id]; !ok {
		return
	}
	delete(r.rooms, id)
	for conn, roomID := range r.members {
		if roomID == id {
			delete(r.members, conn)
		}
	}
	log.Info().Str("module", "room.registry").Str("room", id).Msg("room removed")
}

// Bind records that conn is seated in room id.
func (r *Registry) Bind(conn ConnID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[conn] = id
}

func (r *Registry) Unbind(conn ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, conn)
}

// RoomOf returns the id of the room conn is seated in.
func (r *Registry) RoomOf(conn ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.members[conn]
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Rooms returns the registered rooms sorted by id. The snapshot is taken
// under the registry lock only; lock each room before reading its state.
func (r *Registry) Rooms() []*Room {
	r.mu.RLock()
	out := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

package game

import (
	"sync"

	"github.com/rs/zerolog/log"

	"masquerade/internal/store"
)

// Registry owns the live room instances. Rooms are constructed on first
// access (restored from the store's snapshot when one exists) and torn down
// when the store evicts them or an admin destroys them.
type Registry struct {
	settings Settings
	sink     Sink
	store    *store.SessionStore

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(settings Settings, sink Sink, st *store.SessionStore) *Registry {
	reg := &Registry{
		settings: settings,
		sink:     sink,
		store:    st,
		rooms:    map[string]*Room{},
	}
	if st != nil {
		st.OnRoomEvict = reg.Drop
	}
	return reg
}

// GetOrCreate returns the authoritative room instance for id. The snapshot
// restore happens before the room is published, so a concurrent first
// access never sees (or mutates) the empty pre-restore room.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[id]; ok {
		return room
	}
	room := NewRoom(id, g.settings, g.sink, g.store)
	if g.store != nil {
		view := g.store.GetOrCreateRoom(id)
		if len(view.Snapshot) > 0 {
			if err := room.restore(view.Snapshot); err != nil {
				log.Warn().Str("room_id", id).Err(err).Msg("room snapshot restore failed")
			} else {
				log.Info().Str("room_id", id).Msg("room restored from snapshot")
			}
		}
	}
	g.rooms[id] = room
	return room
}

// Lookup returns the room only if it already exists.
func (g *Registry) Lookup(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	return room, ok
}

// Drop tears down a live room instance without touching the store.
func (g *Registry) Drop(id string) {
	g.mu.Lock()
	room, ok := g.rooms[id]
	delete(g.rooms, id)
	g.mu.Unlock()
	if ok {
		room.Close()
	}
}

// Destroy removes the room everywhere: live instance and store record.
func (g *Registry) Destroy(adminID, id string) error {
	g.mu.Lock()
	room, ok := g.rooms[id]
	g.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}
	if err := room.AdminDestroy(adminID); err != nil {
		return err
	}
	g.Drop(id)
	return nil
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

package core

import (
	"sync"

	"github.com/elie00/stream-party-sub001/internal/domain"
)

type roomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]RoomService
}

func NewRoomManager() RoomManager {
	return &roomManagerImpl{rooms: make(map[domain.RoomName]RoomService)}
}

func (f *roomManagerImpl) GetOrCreate(name domain.RoomName) RoomService {
	f.mu.RLock()
	room, ok := f.rooms[name]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[name]; ok {
		return room
	}
	room = NewRoomService(&domain.Room{Name: name})
	f.rooms[name] = room
	return room
}

func (f *roomManagerImpl) List() []RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, RoomInfo{Name: name, MemberCount: r.MemberCount()})
	}
	return out
}

func (f *roomManagerImpl) StopRoom(name domain.RoomName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, name)
}

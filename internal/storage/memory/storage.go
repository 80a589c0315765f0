package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/numberhunt/internal/model"
	"github.com/mcoot/numberhunt/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	identities map[model.IdentityToken]*model.Identity
	rooms      map[model.RoomID]*model.Room
	codeIndex  map[model.RoomCode]model.RoomID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		identities: make(map[model.IdentityToken]*model.Identity),
		rooms:      make(map[model.RoomID]*model.Room),
		codeIndex:  make(map[model.RoomCode]model.RoomID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.Token] = identity
	return nil
}

func (s *Storage) GetIdentity(ctx context.Context, token model.IdentityToken) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[token]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *Storage) ListIdentities(ctx context.Context) ([]*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, identity)
	}
	slices.SortFunc(out, func(a, b *model.Identity) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.rooms[room.ID]; ok && prev.Code != room.Code {
		delete(s.codeIndex, prev.Code)
	}
	s.rooms[room.ID] = room
	s.codeIndex[room.Code] = room.ID
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

func (s *Storage) GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codeIndex[code]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		delete(s.codeIndex, room.Code)
	}
	delete(s.rooms, id)
	return nil
}

func (s *Storage) RoomCodeExists(ctx context.Context, code model.RoomCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codeIndex[code]
	return ok, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	slices.SortFunc(out, func(a, b *model.Room) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

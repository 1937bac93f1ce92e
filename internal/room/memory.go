package room

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// MemoryStore is an in-process Store with the same compare-and-swap
// semantics as the Postgres implementation. It backs tests and the local
// single-process mode.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]*models.Room
	byCode map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:  make(map[uuid.UUID]*models.Room),
		byCode: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, room *models.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byCode[room.Code]; taken {
		return ErrCodeTaken
	}
	room.Version = 1
	s.rooms[room.ID] = room.Clone()
	s.byCode[room.Code] = room.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return s.rooms[id].Clone(), nil
}

func (s *MemoryStore) Replace(_ context.Context, room *models.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rooms[room.ID]
	if !ok {
		return ErrRoomNotFound
	}
	if current.Version != room.Version {
		return ErrVersionConflict
	}
	room.Version++
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	delete(s.byCode, r.Code)
	delete(s.rooms, id)
	return nil
}

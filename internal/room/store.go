// Package room holds the room document store and the concurrency resolver
// that serializes every mutation through a re-fetch, compute, compare-and-swap
// write cycle.
package room

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

var (
	// ErrRoomNotFound is returned when no room exists for an id or code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrCodeTaken is returned when a generated join code collides.
	ErrCodeTaken = errors.New("join code already taken")
	// ErrVersionConflict is returned by Replace when the document changed
	// underneath the caller.
	ErrVersionConflict = errors.New("room version conflict")

	// ErrRoomFull rejects a join at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrGameStarted rejects a join once the game has left the lobby.
	ErrGameStarted = errors.New("game already started")
	// ErrNotLeader rejects a single-writer mutation from a non-leader.
	ErrNotLeader = errors.New("caller does not hold the leader lease")
	// ErrNotInRoom rejects an operation by a player outside the room.
	ErrNotInRoom = errors.New("player is not in the room")
	// ErrInvalidTransition rejects an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store persists room documents wholesale. Replace performs a
// compare-and-swap keyed on the Version the document was read at and
// returns ErrVersionConflict when the stored version differs; on success
// the document's Version is bumped in place.
type Store interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetByCode(ctx context.Context, code string) (*models.Room, error)
	Replace(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id uuid.UUID) error
}

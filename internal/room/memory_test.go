package room

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

func testRoom(host uuid.UUID) *models.Room {
	return &models.Room{
		ID:             uuid.New(),
		Code:           "ABC234",
		HostID:         host,
		GameType:       models.GameTypeImageStats,
		QuestionCount:  5,
		TimerSeconds:   15,
		MaxPlayers:     4,
		Status:         models.RoomStatusWaiting,
		Players:        []models.Player{{ID: host, Name: "host"}},
		LeaderID:       host,
		LeaseExpiresAt: time.Now().Add(time.Minute),
		CreatedAt:      time.Now(),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	host := uuid.New()
	r := testRoom(host)

	require.NoError(t, store.Create(ctx, r))
	assert.Equal(t, int64(1), r.Version)

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Code, got.Code)

	byCode, err := store.GetByCode(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, r.ID, byCode.ID)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryStoreCodeCollision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := testRoom(uuid.New())
	require.NoError(t, store.Create(ctx, first))

	second := testRoom(uuid.New())
	second.Code = first.Code
	assert.ErrorIs(t, store.Create(ctx, second), ErrCodeTaken)
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	host := uuid.New()
	r := testRoom(host)
	require.NoError(t, store.Create(ctx, r))

	// Two readers fetch the same version.
	a, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	b, err := store.Get(ctx, r.ID)
	require.NoError(t, err)

	a.Players = append(a.Players, models.Player{ID: uuid.New(), Name: "first"})
	require.NoError(t, store.Replace(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	// The stale writer loses.
	b.Players = append(b.Players, models.Player{ID: uuid.New(), Name: "second"})
	assert.ErrorIs(t, store.Replace(ctx, b), ErrVersionConflict)

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Players, 2)
	assert.Equal(t, "first", got.Players[1].Name)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := testRoom(uuid.New())
	require.NoError(t, store.Create(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	got.Players[0].Score = 999

	fresh, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Players[0].Score)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := testRoom(uuid.New())
	require.NoError(t, store.Create(ctx, r))

	require.NoError(t, store.Delete(ctx, r.ID))
	_, err := store.Get(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = store.GetByCode(ctx, r.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, store.Delete(ctx, r.ID), ErrRoomNotFound)
}

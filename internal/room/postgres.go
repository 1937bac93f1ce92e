package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// NotifyChannel is the pg_notify channel carrying room ids on every write.
// The feed relay listens here.
const NotifyChannel = "room_events"

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
    id         UUID PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    doc        JSONB NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const uniqueViolation = "23505"

// PostgresStore stores one JSONB document per room with an optimistic
// version stamp, and raises a pg_notify on every committed write.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the rooms table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create rooms schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, room *models.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO rooms (id, code, doc, version) VALUES ($1, $2, $3, 1)`,
		room.ID, room.Code, doc,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to insert room: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, room.ID.String()); err != nil {
		return fmt.Errorf("failed to notify on create: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit create: %w", err)
	}
	room.Version = 1
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.fetch(ctx, `SELECT doc, version FROM rooms WHERE id = $1`, id)
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.fetch(ctx, `SELECT doc, version FROM rooms WHERE code = $1`, code)
}

func (s *PostgresStore) fetch(ctx context.Context, query string, arg any) (*models.Room, error) {
	var (
		doc     []byte
		version int64
	)
	if err := s.pool.QueryRow(ctx, query, arg).Scan(&doc, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to fetch room: %w", err)
	}
	var room models.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room document: %w", err)
	}
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("stored room document invalid: %w", err)
	}
	room.Version = version
	return &room, nil
}

// Replace swaps the whole document iff the stored version still matches the
// version the caller read. The version check and the notify share one
// transaction, so a delivered notification always reflects a committed write.
func (s *PostgresStore) Replace(ctx context.Context, room *models.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE rooms SET doc = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3`,
		room.ID, doc, room.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to replace room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, room.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check room existence: %w", err)
		}
		if !exists {
			return ErrRoomNotFound
		}
		return ErrVersionConflict
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, room.ID.String()); err != nil {
		return fmt.Errorf("failed to notify on replace: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace: %w", err)
	}
	room.Version++
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

package stats

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS player_game_stats (
    player_id          TEXT NOT NULL,
    player_name        TEXT NOT NULL,
    room_code          TEXT NOT NULL,
    game_type          TEXT NOT NULL,
    score              INTEGER NOT NULL,
    correct_count      INTEGER NOT NULL,
    questions_answered INTEGER NOT NULL,
    time_taken_seconds REAL NOT NULL,
    finished_at        TIMESTAMP NOT NULL,
    PRIMARY KEY (player_id, room_code, finished_at)
);
`

// SQLiteSink persists game outcomes to a local SQLite file.
type SQLiteSink struct {
	db *sqlx.DB
}

// NewSQLiteSink opens (and if needed initializes) the stats database.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// RecordGame inserts one player's outcome. Replays of the same record are
// absorbed by the primary key.
func (s *SQLiteSink) RecordGame(ctx context.Context, rec PlayerGameStats) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO player_game_stats (
			player_id, player_name, room_code, game_type, score,
			correct_count, questions_answered, time_taken_seconds, finished_at
		) VALUES (
			:player_id, :player_name, :room_code, :game_type, :score,
			:correct_count, :questions_answered, :time_taken_seconds, :finished_at
		)`, rec)
	if err != nil {
		return fmt.Errorf("failed to record game stats: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

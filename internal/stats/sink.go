// Package stats is the write-only user statistics collaborator. The engine
// hands it one record per player at game finish and never reads back.
package stats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// PlayerGameStats is one player's outcome for one completed game.
type PlayerGameStats struct {
	PlayerID          uuid.UUID `db:"player_id"`
	PlayerName        string    `db:"player_name"`
	RoomCode          string    `db:"room_code"`
	GameType          string    `db:"game_type"`
	Score             int       `db:"score"`
	CorrectCount      int       `db:"correct_count"`
	QuestionsAnswered int       `db:"questions_answered"`
	TimeTakenSeconds  float64   `db:"time_taken_seconds"`
	FinishedAt        time.Time `db:"finished_at"`
}

// Sink receives game outcomes. Implementations must tolerate repeated
// delivery of the same game.
type Sink interface {
	RecordGame(ctx context.Context, rec PlayerGameStats) error
}

// FromPlayer builds the stats record for one player of a finished room.
func FromPlayer(room *models.Room, p *models.Player, finishedAt time.Time) PlayerGameStats {
	return PlayerGameStats{
		PlayerID:          p.ID,
		PlayerName:        p.Name,
		RoomCode:          room.Code,
		GameType:          string(room.GameType),
		Score:             p.Score,
		CorrectCount:      p.CorrectCount(),
		QuestionsAnswered: len(p.Answers),
		TimeTakenSeconds:  p.TimeTaken(),
		FinishedAt:        finishedAt,
	}
}

// NoopSink discards every record.
type NoopSink struct{}

func (NoopSink) RecordGame(context.Context, PlayerGameStats) error { return nil }

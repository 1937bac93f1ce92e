package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSinkRecordGame(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer sink.Close()

	rec := PlayerGameStats{
		PlayerID:          uuid.New(),
		PlayerName:        "host",
		RoomCode:          "ABC234",
		GameType:          "IMAGE_STATS",
		Score:             580,
		CorrectCount:      5,
		QuestionsAnswered: 5,
		TimeTakenSeconds:  50,
		FinishedAt:        time.Now().UTC().Truncate(time.Second),
	}
	ctx := context.Background()
	require.NoError(t, sink.RecordGame(ctx, rec))

	// At-least-once delivery: the same record twice is absorbed.
	require.NoError(t, sink.RecordGame(ctx, rec))

	var count int
	require.NoError(t, sink.db.Get(&count, `SELECT COUNT(*) FROM player_game_stats`))
	assert.Equal(t, 1, count)

	var got PlayerGameStats
	require.NoError(t, sink.db.Get(&got, `SELECT * FROM player_game_stats LIMIT 1`))
	assert.Equal(t, rec.Score, got.Score)
	assert.Equal(t, rec.CorrectCount, got.CorrectCount)
	assert.Equal(t, rec.PlayerName, got.PlayerName)
}

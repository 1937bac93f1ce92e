package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionRoundTrip(t *testing.T) {
	q := Question{
		ID:   uuid.New(),
		Type: GameTypeImageStats,
		ImageStats: &ImageStatsQuestion{
			SubjectID: 23,
			Name:      "LeBron James",
			Team:      "LAL",
			Position:  "F",
			Points:    25.7,
			Rebounds:  7.3,
			Assists:   8.3,
		},
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var got Question
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, q, got)
	assert.Equal(t, "LeBron James", got.AnswerName())
}

func TestQuestionUnmarshalRejectsMistagged(t *testing.T) {
	id := uuid.New()

	cases := map[string]string{
		"tag without variant": `{"id":"` + id.String() + `","type":"IMAGE_STATS"}`,
		"wrong variant for tag": `{"id":"` + id.String() + `","type":"IMAGE_STATS",` +
			`"team_path":{"subject_id":1,"teams":["CLE","MIA"],"answer":"LeBron James"}}`,
		"both variants": `{"id":"` + id.String() + `","type":"TEAM_PATH",` +
			`"image_stats":{"subject_id":1,"name":"LeBron James"},` +
			`"team_path":{"subject_id":1,"teams":["CLE"],"answer":"LeBron James"}}`,
		"unknown tag": `{"id":"` + id.String() + `","type":"FREE_THROWS",` +
			`"image_stats":{"subject_id":1,"name":"LeBron James"}}`,
		"missing id": `{"type":"TEAM_PATH",` +
			`"team_path":{"subject_id":1,"teams":["CLE"],"answer":"LeBron James"}}`,
		"empty team path": `{"id":"` + id.String() + `","type":"TEAM_PATH",` +
			`"team_path":{"subject_id":1,"teams":[],"answer":"LeBron James"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var q Question
			assert.Error(t, json.Unmarshal([]byte(raw), &q))
		})
	}
}

func TestQuestionValidate(t *testing.T) {
	q := Question{
		ID:       uuid.New(),
		Type:     GameTypeTeamPath,
		TeamPath: &TeamPathQuestion{SubjectID: 1, Teams: []string{"CLE", "MIA", "CLE", "LAL"}, Answer: "LeBron James"},
	}
	require.NoError(t, q.Validate())
	assert.Equal(t, "LeBron James", q.AnswerName())

	q.ImageStats = &ImageStatsQuestion{Name: "LeBron James"}
	assert.Error(t, q.Validate(), "both variants populated")
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ImageStatsQuestion shows a player's team, position and headline stat line;
// the answer is the player's name.
type ImageStatsQuestion struct {
	SubjectID int     `json:"subject_id"`
	Name      string  `json:"name"`
	Team      string  `json:"team"`
	Position  string  `json:"position"`
	Points    float64 `json:"pts"`
	Rebounds  float64 `json:"reb"`
	Assists   float64 `json:"ast"`
}

// TeamPathQuestion shows the ordered sequence of teams a player has played
// for; the answer is the player who followed that path.
type TeamPathQuestion struct {
	SubjectID int      `json:"subject_id"`
	Teams     []string `json:"teams"`
	Answer    string   `json:"answer"`
}

// Question is a closed tagged union keyed by game type. Exactly one variant
// is populated; the document boundary rejects anything else.
type Question struct {
	ID   uuid.UUID
	Type GameType

	ImageStats *ImageStatsQuestion
	TeamPath   *TeamPathQuestion
}

type questionEnvelope struct {
	ID         uuid.UUID           `json:"id"`
	Type       GameType            `json:"type"`
	ImageStats *ImageStatsQuestion `json:"image_stats,omitempty"`
	TeamPath   *TeamPathQuestion   `json:"team_path,omitempty"`
}

// AnswerName returns the reference name the matcher compares guesses against.
func (q *Question) AnswerName() string {
	switch q.Type {
	case GameTypeImageStats:
		if q.ImageStats != nil {
			return q.ImageStats.Name
		}
	case GameTypeTeamPath:
		if q.TeamPath != nil {
			return q.TeamPath.Answer
		}
	}
	return ""
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	cp := q
	if q.ImageStats != nil {
		v := *q.ImageStats
		cp.ImageStats = &v
	}
	if q.TeamPath != nil {
		v := *q.TeamPath
		v.Teams = append([]string(nil), q.TeamPath.Teams...)
		cp.TeamPath = &v
	}
	return cp
}

// Validate enforces that the tag and the populated variant agree.
func (q *Question) Validate() error {
	if q.ID == uuid.Nil {
		return errors.New("missing question id")
	}
	switch q.Type {
	case GameTypeImageStats:
		if q.ImageStats == nil || q.TeamPath != nil {
			return fmt.Errorf("question %s: tag %s does not match populated variant", q.ID, q.Type)
		}
		if q.ImageStats.Name == "" {
			return fmt.Errorf("question %s: image-stats variant missing player name", q.ID)
		}
	case GameTypeTeamPath:
		if q.TeamPath == nil || q.ImageStats != nil {
			return fmt.Errorf("question %s: tag %s does not match populated variant", q.ID, q.Type)
		}
		if len(q.TeamPath.Teams) == 0 || q.TeamPath.Answer == "" {
			return fmt.Errorf("question %s: team-path variant missing teams or answer", q.ID)
		}
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	return nil
}

// MarshalJSON encodes the union as a tagged envelope.
func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(questionEnvelope{
		ID:         q.ID,
		Type:       q.Type,
		ImageStats: q.ImageStats,
		TeamPath:   q.TeamPath,
	})
}

// UnmarshalJSON decodes and validates the tagged envelope. Malformed or
// mistagged questions are rejected here rather than trusted downstream.
func (q *Question) UnmarshalJSON(data []byte) error {
	var env questionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode question: %w", err)
	}
	decoded := Question{
		ID:         env.ID,
		Type:       env.Type,
		ImageStats: env.ImageStats,
		TeamPath:   env.TeamPath,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*q = decoded
	return nil
}

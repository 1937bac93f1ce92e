// Package questions generates the question records handed to a room at
// game start. The engine treats generation as an opaque collaborator; this
// implementation samples from a static NBA bank, optionally overridden by a
// YAML file.
package questions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// Subject is one player entry usable for image-and-stats questions.
type Subject struct {
	ID       int     `yaml:"id"`
	Name     string  `yaml:"name"`
	Team     string  `yaml:"team"`
	Position string  `yaml:"position"`
	Points   float64 `yaml:"pts"`
	Rebounds float64 `yaml:"reb"`
	Assists  float64 `yaml:"ast"`
}

// Journey is one career team sequence usable for team-path questions.
type Journey struct {
	SubjectID int      `yaml:"subject_id"`
	Teams     []string `yaml:"teams"`
	Answer    string   `yaml:"answer"`
}

// Bank holds the raw material for every game type.
type Bank struct {
	Subjects []Subject `yaml:"subjects"`
	Journeys []Journey `yaml:"journeys"`
}

// DefaultBank returns the built-in bank.
func DefaultBank() *Bank {
	return &Bank{
		Subjects: []Subject{
			{ID: 2544, Name: "LeBron James", Team: "LAL", Position: "F", Points: 25.7, Rebounds: 7.3, Assists: 8.3},
			{ID: 201939, Name: "Stephen Curry", Team: "GSW", Position: "G", Points: 26.4, Rebounds: 4.5, Assists: 5.1},
			{ID: 203507, Name: "Giannis Antetokounmpo", Team: "MIL", Position: "F", Points: 30.4, Rebounds: 11.5, Assists: 6.5},
			{ID: 203999, Name: "Nikola Jokic", Team: "DEN", Position: "C", Points: 26.4, Rebounds: 12.4, Assists: 9.0},
			{ID: 201566, Name: "Luka Doncic", Team: "DAL", Position: "G", Points: 33.9, Rebounds: 9.2, Assists: 9.8},
			{ID: 201142, Name: "Kevin Durant", Team: "PHX", Position: "F", Points: 27.1, Rebounds: 6.6, Assists: 5.0},
			{ID: 201935, Name: "James Harden", Team: "LAC", Position: "G", Points: 16.6, Rebounds: 5.1, Assists: 8.5},
			{ID: 203954, Name: "Joel Embiid", Team: "PHI", Position: "C", Points: 34.7, Rebounds: 11.0, Assists: 5.6},
			{ID: 1628369, Name: "Jayson Tatum", Team: "BOS", Position: "F", Points: 26.9, Rebounds: 8.1, Assists: 4.9},
			{ID: 1629029, Name: "Shai Gilgeous-Alexander", Team: "OKC", Position: "G", Points: 30.1, Rebounds: 5.5, Assists: 6.2},
			{ID: 202710, Name: "Jimmy Butler", Team: "MIA", Position: "F", Points: 20.8, Rebounds: 5.3, Assists: 5.0},
			{ID: 1628983, Name: "Anthony Edwards", Team: "MIN", Position: "G", Points: 25.9, Rebounds: 5.4, Assists: 5.1},
		},
		Journeys: []Journey{
			{SubjectID: 203903, Teams: []string{"UTA", "CLE", "LAL"}, Answer: "Jordan Clarkson"},
			{SubjectID: 201935, Teams: []string{"OKC", "HOU", "BKN", "PHI"}, Answer: "James Harden"},
			{SubjectID: 2544, Teams: []string{"CLE", "MIA", "CLE", "LAL"}, Answer: "LeBron James"},
			{SubjectID: 200768, Teams: []string{"TOR", "LAL", "MIA"}, Answer: "Kyle Lowry"},
			{SubjectID: 201142, Teams: []string{"GSW", "OKC", "GSW", "BKN", "PHX"}, Answer: "Kevin Durant"},
			{SubjectID: 202710, Teams: []string{"CHI", "MIN", "PHI", "MIA", "CHI"}, Answer: "Jimmy Butler"},
		},
	}
}

// LoadBank reads a bank from a YAML file.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if err := bank.validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}

func (b *Bank) validate() error {
	for i, s := range b.Subjects {
		if s.Name == "" || s.Team == "" {
			return fmt.Errorf("question bank: subject %d missing name or team", i)
		}
	}
	for i, j := range b.Journeys {
		if len(j.Teams) < 2 || j.Answer == "" {
			return fmt.Errorf("question bank: journey %d needs at least two teams and an answer", i)
		}
	}
	return nil
}

// size returns how many questions the bank can cover for a game type.
func (b *Bank) size(gameType models.GameType) int {
	switch gameType {
	case models.GameTypeImageStats:
		return len(b.Subjects)
	case models.GameTypeTeamPath:
		return len(b.Journeys)
	}
	return 0
}

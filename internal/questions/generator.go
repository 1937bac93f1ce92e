package questions

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// Generator produces a fixed number of questions for a game type.
type Generator interface {
	Generate(gameType models.GameType, n int) ([]models.Question, error)
}

// BankGenerator samples questions from a Bank without replacement.
type BankGenerator struct {
	bank *Bank
	rng  *rand.Rand
}

// NewBankGenerator returns a generator over the given bank. A zero seed
// falls back to the current time.
func NewBankGenerator(bank *Bank, seed int64) *BankGenerator {
	if bank == nil {
		bank = DefaultBank()
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &BankGenerator{
		bank: bank,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Generate returns n distinct questions of the requested game type.
func (g *BankGenerator) Generate(gameType models.GameType, n int) ([]models.Question, error) {
	if n <= 0 {
		return nil, fmt.Errorf("question count must be positive, got %d", n)
	}
	if avail := g.bank.size(gameType); n > avail {
		return nil, fmt.Errorf("bank holds %d %s questions, %d requested", avail, gameType, n)
	}

	questions := make([]models.Question, 0, n)
	switch gameType {
	case models.GameTypeImageStats:
		for _, i := range g.rng.Perm(len(g.bank.Subjects))[:n] {
			s := g.bank.Subjects[i]
			questions = append(questions, models.Question{
				ID:   uuid.New(),
				Type: models.GameTypeImageStats,
				ImageStats: &models.ImageStatsQuestion{
					SubjectID: s.ID,
					Name:      s.Name,
					Team:      s.Team,
					Position:  s.Position,
					Points:    s.Points,
					Rebounds:  s.Rebounds,
					Assists:   s.Assists,
				},
			})
		}
	case models.GameTypeTeamPath:
		for _, i := range g.rng.Perm(len(g.bank.Journeys))[:n] {
			j := g.bank.Journeys[i]
			questions = append(questions, models.Question{
				ID:   uuid.New(),
				Type: models.GameTypeTeamPath,
				TeamPath: &models.TeamPathQuestion{
					SubjectID: j.SubjectID,
					Teams:     append([]string(nil), j.Teams...),
					Answer:    j.Answer,
				},
			})
		}
	default:
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
	return questions, nil
}

// Daily returns the deterministic image-stats subject for a calendar date.
// Every client hashing the same date lands on the same player.
func (g *BankGenerator) Daily(date time.Time) Subject {
	day := date.Format("2006-01-02")
	sum := md5.Sum([]byte(day))
	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(g.bank.Subjects))
	return g.bank.Subjects[idx]
}

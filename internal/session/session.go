// Package session runs the per-participant client engine: it keeps a local
// view of the shared room document reconciled through push snapshots and a
// polling fallback, drives the per-question answer/reveal state machine,
// and performs single-writer transitions when this participant holds the
// leader lease.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// Phase is the local progression state for the current round.
type Phase int

const (
	// PhaseLobby is pre-game: the room is waiting for players.
	PhaseLobby Phase = iota
	// PhaseAnswering is an open round with a running countdown.
	PhaseAnswering
	// PhaseRevealed is the post-submission state before the next round.
	PhaseRevealed
	// PhaseFinished is reached when the final round's reveal completes.
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseAnswering:
		return "answering"
	case PhaseRevealed:
		return "revealed"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

var (
	// ErrEmptyGuess rejects a manual submission with no content.
	ErrEmptyGuess = errors.New("guess must not be empty")
	// ErrNotAnswering rejects a submission outside an open round.
	ErrNotAnswering = errors.New("no round is open for answers")
)

// SnapshotSource is the push half of change propagation. A nil source
// leaves the controller on polling alone.
type SnapshotSource interface {
	Subscribe(ctx context.Context, code string) (<-chan *models.Room, func(), error)
}

// Matcher grades a guess against the reference answer name.
type Matcher func(guess, reference string) bool

// RevealResult describes the outcome of one round for this participant.
type RevealResult struct {
	Round     int
	Question  models.Question
	Submitted string
	Correct   bool
	Points    int
	TimedOut  bool
}

// Hooks are the controller's notifications to its embedder. They are
// invoked on the controller's goroutine with its state locked and must not
// call back into the controller. Status-dependent hooks fire exactly once
// per transition even when the same snapshot arrives on both channels.
type Hooks struct {
	OnLobbyUpdate func(room *models.Room)
	OnGameStart   func(room *models.Room)
	OnRoundStart  func(round int, q models.Question)
	OnTick        func(round, remaining int)
	OnReveal      func(res RevealResult)
	OnGameFinish  func(room *models.Room)
	OnReset       func(room *models.Room)
}

// Config tunes the controller's timing.
type Config struct {
	PollInterval time.Duration // fallback re-fetch cadence
	GraceSeconds int           // auto-advance delay after a reveal
}

// DefaultConfig returns the production timing.
func DefaultConfig() Config {
	return Config{
		PollInterval: 3 * time.Second,
		GraceSeconds: 5,
	}
}

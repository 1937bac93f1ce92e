package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameType defines which question variant a room plays.
type GameType string

const (
	GameTypeImageStats GameType = "IMAGE_STATS"
	GameTypeTeamPath   GameType = "TEAM_PATH"
)

// Valid reports whether the game type is one of the known variants.
func (g GameType) Valid() bool {
	switch g {
	case GameTypeImageStats, GameTypeTeamPath:
		return true
	}
	return false
}

// RoomStatus defines the lifecycle phase of a room.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "WAITING"
	RoomStatusPlaying  RoomStatus = "PLAYING"
	RoomStatusFinished RoomStatus = "FINISHED"
)

// Valid reports whether the status is one of the known phases.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusWaiting, RoomStatusPlaying, RoomStatusFinished:
		return true
	}
	return false
}

// CanTransition reports whether a status transition is allowed.
// The only legal cycle is waiting -> playing -> finished -> waiting.
func CanTransition(from, to RoomStatus) bool {
	switch from {
	case RoomStatusWaiting:
		return to == RoomStatusPlaying
	case RoomStatusPlaying:
		return to == RoomStatusFinished
	case RoomStatusFinished:
		return to == RoomStatusWaiting
	}
	return false
}

// Answer records one player's submission for one question.
type Answer struct {
	QuestionID       uuid.UUID `json:"question_id"`
	Submitted        string    `json:"submitted"`
	Correct          bool      `json:"correct"`
	TimeTakenSeconds float64   `json:"time_taken_seconds"`
}

// Player is one participant inside a room document.
type Player struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Score   int       `json:"score"`
	Answers []Answer  `json:"answers,omitempty"`
}

// CorrectCount returns how many of the player's answers were correct.
func (p *Player) CorrectCount() int {
	n := 0
	for _, a := range p.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// TimeTaken returns the total seconds the player spent answering.
func (p *Player) TimeTaken() float64 {
	var total float64
	for _, a := range p.Answers {
		total += a.TimeTakenSeconds
	}
	return total
}

// Room is one game session's shared document. It is read and replaced
// wholesale; Version is the optimistic-concurrency stamp maintained by the
// store and is not part of the document body.
type Room struct {
	ID              uuid.UUID   `json:"id"`
	Code            string      `json:"code"`
	HostID          uuid.UUID   `json:"host_id"`
	GuestID         uuid.UUID   `json:"guest_id,omitempty"`
	GameType        GameType    `json:"game_type"`
	QuestionCount   int         `json:"question_count"`
	TimerSeconds    int         `json:"timer_seconds"`
	MaxPlayers      int         `json:"max_players"`
	Status          RoomStatus  `json:"status"`
	Players         []Player    `json:"players"`
	Questions       []Question  `json:"questions,omitempty"`
	CurrentQuestion int         `json:"current_question"`
	PlayAgainVotes  []uuid.UUID `json:"play_again_votes,omitempty"`
	LeaderID        uuid.UUID   `json:"leader_id"`
	LeaseExpiresAt  time.Time   `json:"lease_expires_at"`
	CreatedAt       time.Time   `json:"created_at"`

	Version int64 `json:"-"`
}

// PlayerIndex returns the index of the player in the room, or -1.
func (r *Room) PlayerIndex(id uuid.UUID) int {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// HasPlayer reports whether the player is in the room.
func (r *Room) HasPlayer(id uuid.UUID) bool {
	return r.PlayerIndex(id) >= 0
}

// HasVoted reports whether the player has cast a play-again vote.
func (r *Room) HasVoted(id uuid.UUID) bool {
	for _, v := range r.PlayAgainVotes {
		if v == id {
			return true
		}
	}
	return false
}

// LeaseExpired reports whether the leader's lease has lapsed at now.
func (r *Room) LeaseExpired(now time.Time) bool {
	return !now.Before(r.LeaseExpiresAt)
}

// IsLeader reports whether the player holds an unexpired leader lease.
func (r *Room) IsLeader(id uuid.UUID, now time.Time) bool {
	return r.LeaderID == id && !r.LeaseExpired(now)
}

// Clone returns a deep copy of the room, safe to mutate independently.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		cp.Players[i] = p
		cp.Players[i].Answers = append([]Answer(nil), p.Answers...)
	}
	cp.Questions = make([]Question, len(r.Questions))
	for i, q := range r.Questions {
		cp.Questions[i] = q.Clone()
	}
	cp.PlayAgainVotes = append([]uuid.UUID(nil), r.PlayAgainVotes...)
	return &cp
}

// Validate checks the document invariants at the store boundary.
func (r *Room) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("room %s: missing id", r.Code)
	}
	if r.Code == "" {
		return fmt.Errorf("room %s: missing join code", r.ID)
	}
	if !r.GameType.Valid() {
		return fmt.Errorf("room %s: unknown game type %q", r.Code, r.GameType)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("room %s: unknown status %q", r.Code, r.Status)
	}
	if r.MaxPlayers < 1 {
		return fmt.Errorf("room %s: max players must be positive", r.Code)
	}
	if len(r.Players) > r.MaxPlayers {
		return fmt.Errorf("room %s: %d players exceeds capacity %d", r.Code, len(r.Players), r.MaxPlayers)
	}
	seen := make(map[uuid.UUID]bool, len(r.Players))
	for _, p := range r.Players {
		if seen[p.ID] {
			return fmt.Errorf("room %s: duplicate player id %s", r.Code, p.ID)
		}
		seen[p.ID] = true
		if p.Score < 0 {
			return fmt.Errorf("room %s: negative score for player %s", r.Code, p.ID)
		}
	}
	if !seen[r.HostID] {
		return fmt.Errorf("room %s: host %s is not a player", r.Code, r.HostID)
	}
	for _, v := range r.PlayAgainVotes {
		if !seen[v] {
			return fmt.Errorf("room %s: vote from non-player %s", r.Code, v)
		}
	}
	if r.Status == RoomStatusPlaying {
		if len(r.Questions) == 0 {
			return fmt.Errorf("room %s: playing with no questions", r.Code)
		}
		if r.CurrentQuestion < 0 || r.CurrentQuestion >= len(r.Questions) {
			return fmt.Errorf("room %s: question index %d out of range [0,%d)", r.Code, r.CurrentQuestion, len(r.Questions))
		}
	}
	for i := range r.Questions {
		if err := r.Questions[i].Validate(); err != nil {
			return fmt.Errorf("room %s: question %d: %w", r.Code, i, err)
		}
	}
	return nil
}

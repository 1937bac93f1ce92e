package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I

	defaultMaxPlayers   = 4
	defaultQuestions    = 5
	defaultTimerSeconds = 15

	createAttempts = 5
)

// errDeleted signals from a mutation closure that the room should be
// removed instead of written back.
var errDeleted = errors.New("room deleted")

// CreateRoomOptions configures a new room. Zero fields fall back to
// defaults.
type CreateRoomOptions struct {
	GameType      models.GameType
	QuestionCount int
	TimerSeconds  int
	MaxPlayers    int
}

// Resolver wraps the store with the re-fetch, compute, compare-and-swap
// discipline. Every mutation re-reads the latest document, applies a pure
// transformation, and writes it back keyed on the read version; a version
// conflict triggers a bounded retry of the whole cycle, so lost updates
// cannot land.
type Resolver struct {
	store      Store
	clock      clockwork.Clock
	maxRetries int
	leaseTTL   time.Duration
}

// NewResolver creates a resolver with production defaults.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:      store,
		clock:      clockwork.NewRealClock(),
		maxRetries: 5,
		leaseTTL:   15 * time.Second,
	}
}

// NewResolverWithClock creates a resolver on an injected clock, for tests.
func NewResolverWithClock(store Store, clock clockwork.Clock) *Resolver {
	r := NewResolver(store)
	r.clock = clock
	return r
}

// LeaseTTL returns the leader lease duration.
func (r *Resolver) LeaseTTL() time.Duration {
	return r.leaseTTL
}

// Get fetches a room by id.
func (r *Resolver) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return r.store.Get(ctx, roomID)
}

// GetByCode fetches a room by join code.
func (r *Resolver) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	return r.store.GetByCode(ctx, code)
}

// CreateRoom generates a join code and persists a waiting room containing
// only the host, who starts as leader.
func (r *Resolver) CreateRoom(ctx context.Context, hostID uuid.UUID, hostName string, opts CreateRoomOptions) (*models.Room, error) {
	if opts.GameType == "" {
		opts.GameType = models.GameTypeImageStats
	}
	if opts.QuestionCount <= 0 {
		opts.QuestionCount = defaultQuestions
	}
	if opts.TimerSeconds <= 0 {
		opts.TimerSeconds = defaultTimerSeconds
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = defaultMaxPlayers
	}
	if !opts.GameType.Valid() {
		return nil, fmt.Errorf("unknown game type %q", opts.GameType)
	}

	now := r.clock.Now().UTC()
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		room := &models.Room{
			ID:             uuid.New(),
			Code:           code,
			HostID:         hostID,
			GameType:       opts.GameType,
			QuestionCount:  opts.QuestionCount,
			TimerSeconds:   opts.TimerSeconds,
			MaxPlayers:     opts.MaxPlayers,
			Status:         models.RoomStatusWaiting,
			Players:        []models.Player{{ID: hostID, Name: hostName}},
			LeaderID:       hostID,
			LeaseExpiresAt: now.Add(r.leaseTTL),
			CreatedAt:      now,
		}
		err = r.store.Create(ctx, room)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("room_code", room.Code).
			Str("host_id", hostID.String()).
			Str("game_type", string(room.GameType)).
			Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate a unique join code after %d attempts", createAttempts)
}

// Join adds a player to a waiting room. Rejoining a room you are already in
// is a no-op; a full room or a started game is a rejection.
func (r *Resolver) Join(ctx context.Context, code string, playerID uuid.UUID, name string) (*models.Room, error) {
	seed, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return r.mutate(ctx, seed.ID, "join", func(room *models.Room) error {
		if room.HasPlayer(playerID) {
			return nil
		}
		if room.Status != models.RoomStatusWaiting {
			return ErrGameStarted
		}
		if len(room.Players) >= room.MaxPlayers {
			return ErrRoomFull
		}
		room.Players = append(room.Players, models.Player{ID: playerID, Name: name})
		if room.GuestID == uuid.Nil {
			room.GuestID = playerID
		}
		return nil
	})
}

// Leave removes a player. The host leaving a waiting room deletes it
// outright; otherwise departures promote a new guest (and host, if needed)
// and drop the leader lease so a surviving player can claim it.
func (r *Resolver) Leave(ctx context.Context, roomID, playerID uuid.UUID) error {
	_, err := r.mutate(ctx, roomID, "leave", func(room *models.Room) error {
		idx := room.PlayerIndex(playerID)
		if idx < 0 {
			return nil
		}
		if playerID == room.HostID && room.Status == models.RoomStatusWaiting {
			return errDeleted
		}
		room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
		if len(room.Players) == 0 {
			return errDeleted
		}
		room.PlayAgainVotes = removeID(room.PlayAgainVotes, playerID)
		if playerID == room.GuestID {
			room.GuestID = nextGuest(room)
		}
		if playerID == room.HostID {
			room.HostID = room.Players[0].ID
			if room.GuestID == room.HostID {
				room.GuestID = nextGuest(room)
			}
		}
		if playerID == room.LeaderID {
			// Expire the lease immediately so reconciliation on any
			// surviving client can claim leadership.
			room.LeaderID = room.HostID
			room.LeaseExpiresAt = time.Time{}
		}
		return nil
	})
	return err
}

// Start populates the question list and moves the room into play.
// Leader-only.
func (r *Resolver) Start(ctx context.Context, roomID, callerID uuid.UUID, questions []models.Question) (*models.Room, error) {
	if len(questions) == 0 {
		return nil, errors.New("cannot start a game with no questions")
	}
	return r.mutate(ctx, roomID, "start", func(room *models.Room) error {
		if err := r.requireLeader(room, callerID); err != nil {
			return err
		}
		if room.Status == models.RoomStatusPlaying {
			return nil
		}
		if !models.CanTransition(room.Status, models.RoomStatusPlaying) {
			return ErrInvalidTransition
		}
		room.Questions = questions
		room.QuestionCount = len(questions)
		room.CurrentQuestion = 0
		room.PlayAgainVotes = nil
		room.Status = models.RoomStatusPlaying
		return nil
	})
}

// RecordAnswer appends a player's answer for the current question and adds
// the earned points to their cumulative score. Re-recording the same
// question is a no-op, so at-least-once delivery of a submission is safe.
func (r *Resolver) RecordAnswer(ctx context.Context, roomID, playerID uuid.UUID, answer models.Answer, points int) (*models.Room, error) {
	if points < 0 {
		return nil, fmt.Errorf("points must be non-negative, got %d", points)
	}
	return r.mutate(ctx, roomID, "record_answer", func(room *models.Room) error {
		idx := room.PlayerIndex(playerID)
		if idx < 0 {
			return ErrNotInRoom
		}
		if room.Status != models.RoomStatusPlaying {
			return fmt.Errorf("%w: cannot answer while %s", ErrInvalidTransition, room.Status)
		}
		p := &room.Players[idx]
		for _, a := range p.Answers {
			if a.QuestionID == answer.QuestionID {
				return nil
			}
		}
		p.Answers = append(p.Answers, answer)
		p.Score += points
		return nil
	})
}

// AdvanceQuestion moves the shared question index forward by exactly one.
// Leader-only; a stale index is treated as an already-applied advance.
func (r *Resolver) AdvanceQuestion(ctx context.Context, roomID, callerID uuid.UUID, index int) (*models.Room, error) {
	return r.mutate(ctx, roomID, "advance_question", func(room *models.Room) error {
		if err := r.requireLeader(room, callerID); err != nil {
			return err
		}
		if room.Status != models.RoomStatusPlaying {
			return fmt.Errorf("%w: cannot advance while %s", ErrInvalidTransition, room.Status)
		}
		if index <= room.CurrentQuestion {
			return nil
		}
		if index != room.CurrentQuestion+1 {
			return fmt.Errorf("advance must be sequential: at %d, requested %d", room.CurrentQuestion, index)
		}
		if index >= len(room.Questions) {
			return fmt.Errorf("question index %d out of range [0,%d)", index, len(room.Questions))
		}
		room.CurrentQuestion = index
		return nil
	})
}

// SetStatus commits a status transition. Re-applying the current status is
// a no-op; anything else must follow the legal cycle. Leader-only.
func (r *Resolver) SetStatus(ctx context.Context, roomID, callerID uuid.UUID, status models.RoomStatus) (*models.Room, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return r.mutate(ctx, roomID, "set_status", func(room *models.Room) error {
		if room.Status == status {
			return nil
		}
		if err := r.requireLeader(room, callerID); err != nil {
			return err
		}
		if !models.CanTransition(room.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, room.Status, status)
		}
		room.Status = status
		return nil
	})
}

// SubmitVote records a play-again vote. The vote set is idempotent under
// union: voting twice leaves it unchanged.
func (r *Resolver) SubmitVote(ctx context.Context, roomID, playerID uuid.UUID) (*models.Room, error) {
	return r.mutate(ctx, roomID, "submit_vote", func(room *models.Room) error {
		if !room.HasPlayer(playerID) {
			return ErrNotInRoom
		}
		if room.Status != models.RoomStatusFinished {
			return fmt.Errorf("%w: cannot vote while %s", ErrInvalidTransition, room.Status)
		}
		if room.HasVoted(playerID) {
			return nil
		}
		room.PlayAgainVotes = append(room.PlayAgainVotes, playerID)
		return nil
	})
}

// Reset returns a finished room to the lobby with the same roster. The vote
// count is re-read inside the mutation cycle immediately before the write,
// and the compare-and-swap makes a double reset impossible. Leader-only.
func (r *Resolver) Reset(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error) {
	return r.mutate(ctx, roomID, "reset", func(room *models.Room) error {
		if room.Status == models.RoomStatusWaiting {
			return nil
		}
		if err := r.requireLeader(room, callerID); err != nil {
			return err
		}
		if !models.CanTransition(room.Status, models.RoomStatusWaiting) {
			return ErrInvalidTransition
		}
		if len(room.PlayAgainVotes) < len(room.Players) {
			return fmt.Errorf("reset requires unanimous votes: %d of %d", len(room.PlayAgainVotes), len(room.Players))
		}
		for i := range room.Players {
			room.Players[i].Score = 0
			room.Players[i].Answers = nil
		}
		room.Questions = nil
		room.CurrentQuestion = 0
		room.PlayAgainVotes = nil
		room.Status = models.RoomStatusWaiting
		return nil
	})
}

// RenewLease extends the current leader's lease. Only the leader renews.
func (r *Resolver) RenewLease(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error) {
	return r.mutate(ctx, roomID, "renew_lease", func(room *models.Room) error {
		if room.LeaderID != callerID {
			return ErrNotLeader
		}
		room.LeaseExpiresAt = r.clock.Now().UTC().Add(r.leaseTTL)
		return nil
	})
}

// ClaimLease takes over leadership once the previous lease has lapsed. The
// compare-and-swap write guarantees at most one claimant wins a given
// expiry.
func (r *Resolver) ClaimLease(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error) {
	return r.mutate(ctx, roomID, "claim_lease", func(room *models.Room) error {
		if !room.HasPlayer(callerID) {
			return ErrNotInRoom
		}
		now := r.clock.Now().UTC()
		if room.LeaderID != callerID && !room.LeaseExpired(now) {
			return ErrNotLeader
		}
		room.LeaderID = callerID
		room.LeaseExpiresAt = now.Add(r.leaseTTL)
		return nil
	})
}

// requireLeader gates single-writer mutations on an unexpired lease.
func (r *Resolver) requireLeader(room *models.Room, callerID uuid.UUID) error {
	if !room.IsLeader(callerID, r.clock.Now().UTC()) {
		return ErrNotLeader
	}
	return nil
}

// mutate runs one re-fetch / compute / compare-and-swap cycle, retrying the
// whole cycle on version conflicts. The closure mutates the fetched copy in
// place; returning errDeleted deletes the room instead of writing it back.
func (r *Resolver) mutate(ctx context.Context, roomID uuid.UUID, op string, fn func(*models.Room) error) (*models.Room, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		room, err := r.store.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		before := room.Version
		if err := fn(room); err != nil {
			if errors.Is(err, errDeleted) {
				return nil, r.store.Delete(ctx, roomID)
			}
			return nil, err
		}
		err = r.store.Replace(ctx, room)
		if err == nil {
			if attempt > 0 {
				log.Debug().
					Str("room_code", room.Code).
					Str("op", op).
					Int("attempt", attempt+1).
					Msg("mutation landed after conflict retry")
			}
			return room, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		log.Debug().
			Str("room_code", room.Code).
			Str("op", op).
			Int64("read_version", before).
			Msg("version conflict, refetching")
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", op, r.maxRetries+1, lastErr)
}

func nextGuest(room *models.Room) uuid.UUID {
	for _, p := range room.Players {
		if p.ID != room.HostID {
			return p.ID
		}
	}
	return uuid.Nil
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// generateCode returns a short join code from an alphabet without
// look-alike characters.
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

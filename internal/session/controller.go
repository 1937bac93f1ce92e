package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/questions"
	"github.com/fastbreakhq/fastbreak/internal/room"
	"github.com/fastbreakhq/fastbreak/internal/stats"
)

// Controller is one participant's session engine. All state is guarded by
// a single mutex; timers, snapshots and public operations are serialized
// through it, mirroring the cooperative single-threaded round logic.
type Controller struct {
	resolver *room.Resolver
	source   SnapshotSource
	clock    clockwork.Clock
	playerID uuid.UUID
	matcher  Matcher
	sink     stats.Sink
	hooks    Hooks
	cfg      Config

	mu           sync.Mutex
	view         *models.Room
	phase        Phase
	round        int
	answered     bool
	remaining    int
	lastStatus   models.RoomStatus
	statsFlushed bool

	roundTicker clockwork.Ticker
	graceTimer  clockwork.Timer
}

// NewController wires a controller for one player. The sink may be nil for
// a participant that never reports statistics.
func NewController(resolver *room.Resolver, source SnapshotSource, playerID uuid.UUID, matcher Matcher, sink stats.Sink, hooks Hooks, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.GraceSeconds <= 0 {
		cfg.GraceSeconds = DefaultConfig().GraceSeconds
	}
	if sink == nil {
		sink = stats.NoopSink{}
	}
	return &Controller{
		resolver: resolver,
		source:   source,
		clock:    clockwork.NewRealClock(),
		playerID: playerID,
		matcher:  matcher,
		sink:     sink,
		hooks:    hooks,
		cfg:      cfg,
	}
}

// WithClock swaps the clock, for tests.
func (c *Controller) WithClock(clock clockwork.Clock) *Controller {
	c.clock = clock
	return c
}

// Snapshot returns a copy of the current local view, or nil before the
// first fetch.
func (c *Controller) Snapshot() *models.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == nil {
		return nil
	}
	return c.view.Clone()
}

// Phase returns the local round phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Run fetches the room, subscribes to the change feed, and reconciles
// until the context is cancelled or the room disappears. Room-not-found is
// terminal: the session ends and the error is returned.
func (c *Controller) Run(ctx context.Context, code string) error {
	rm, err := c.resolver.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("session fetch failed: %w", err)
	}
	if !rm.HasPlayer(c.playerID) {
		return fmt.Errorf("player %s: %w", c.playerID, room.ErrNotInRoom)
	}

	var snapCh <-chan *models.Room
	if c.source != nil {
		ch, cancel, err := c.source.Subscribe(ctx, rm.Code)
		if err != nil {
			// Push is best-effort; polling alone still converges.
			log.Error().Err(err).Str("room_code", rm.Code).Msg("push subscribe failed, relying on polling")
		} else {
			snapCh = ch
			defer cancel()
		}
	}

	poll := c.clock.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()
	defer c.teardown()

	c.applySnapshot(ctx, rm)

	roomID := rm.ID
	for {
		// Timer channels are rebound every iteration; a nil channel
		// blocks forever, which is exactly what an idle phase needs.
		c.mu.Lock()
		var tickCh, graceCh <-chan time.Time
		if c.roundTicker != nil {
			tickCh = c.roundTicker.Chan()
		}
		if c.graceTimer != nil {
			graceCh = c.graceTimer.Chan()
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapCh:
			if !ok {
				snapCh = nil
				continue
			}
			c.applySnapshot(ctx, snap)
		case <-poll.Chan():
			if err := c.poll(ctx, roomID); err != nil {
				return err
			}
		case <-tickCh:
			c.handleRoundTick(ctx)
		case <-graceCh:
			c.handleGraceExpired(ctx)
		}
	}
}

// poll is the fallback reconciliation path. It re-fetches the document,
// applies the replace-on-change rule, and maintains the leader lease.
func (c *Controller) poll(ctx context.Context, roomID uuid.UUID) error {
	rm, err := c.resolver.Get(ctx, roomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		log.Info().Str("room_id", roomID.String()).Msg("room gone, ending session")
		return err
	}
	if err != nil {
		// Transient fetch failure: keep the prior view, try next cycle.
		log.Error().Err(err).Msg("poll fetch failed")
		return nil
	}
	c.applySnapshot(ctx, rm)
	c.maintainLease(ctx, roomID)
	return nil
}

// maintainLease renews this participant's lease while leading and claims
// an expired lease otherwise. Exactly one claimant wins a given expiry.
func (c *Controller) maintainLease(ctx context.Context, roomID uuid.UUID) {
	c.mu.Lock()
	view := c.view
	c.mu.Unlock()
	if view == nil {
		return
	}

	now := c.clock.Now().UTC()
	switch {
	case view.LeaderID == c.playerID:
		rm, err := c.resolver.RenewLease(ctx, roomID, c.playerID)
		if err != nil {
			log.Error().Err(err).Str("room_code", view.Code).Msg("lease renewal failed")
			return
		}
		c.applySnapshot(ctx, rm)
	case view.LeaseExpired(now):
		rm, err := c.resolver.ClaimLease(ctx, roomID, c.playerID)
		if errors.Is(err, room.ErrNotLeader) {
			// Someone else beat us to it.
			return
		}
		if err != nil {
			log.Error().Err(err).Str("room_code", view.Code).Msg("lease claim failed")
			return
		}
		log.Info().Str("room_code", rm.Code).Str("player_id", c.playerID.String()).Msg("took over leader lease")
		c.applySnapshot(ctx, rm)
	}
}

// applySnapshot is the single reconciliation point for both delivery
// channels. The whole local view is replaced, last writer wins; stale or
// duplicate snapshots are discarded by version, which is what makes every
// downstream transition idempotent under double delivery.
func (c *Controller) applySnapshot(ctx context.Context, rm *models.Room) {
	if rm == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != nil && rm.Version <= c.view.Version {
		return
	}
	changed := c.view == nil || volatileChanged(c.view, rm)
	c.view = rm

	if changed && rm.Status == models.RoomStatusWaiting && c.hooks.OnLobbyUpdate != nil {
		c.hooks.OnLobbyUpdate(rm)
	}

	c.reactToStatusLocked(ctx, rm)

	if rm.Status == models.RoomStatusPlaying && rm.CurrentQuestion > c.round {
		c.enterRoundLocked(rm.CurrentQuestion)
	}
	c.maybeResetLocked(ctx, rm)
}

// volatileChanged compares the small field set that matters for
// re-notification, so lease renewals and other incidental writes do not
// churn the embedder.
func volatileChanged(old, new *models.Room) bool {
	return old.Status != new.Status ||
		len(old.Players) != len(new.Players) ||
		old.CurrentQuestion != new.CurrentQuestion ||
		len(old.PlayAgainVotes) != len(new.PlayAgainVotes)
}

// reactToStatusLocked fires the dependent transition for a status change
// exactly once, no matter how many times or on which channel the same
// status is observed.
func (c *Controller) reactToStatusLocked(ctx context.Context, rm *models.Room) {
	if rm.Status == c.lastStatus {
		return
	}
	from := c.lastStatus
	c.lastStatus = rm.Status

	switch rm.Status {
	case models.RoomStatusPlaying:
		log.Info().Str("room_code", rm.Code).Msg("game started")
		if c.hooks.OnGameStart != nil {
			c.hooks.OnGameStart(rm)
		}
		c.enterRoundLocked(rm.CurrentQuestion)
	case models.RoomStatusFinished:
		c.finishLocked(ctx, rm)
	case models.RoomStatusWaiting:
		if from != models.RoomStatusFinished {
			return
		}
		// Unanimous play-again vote landed: back to the lobby.
		log.Info().Str("room_code", rm.Code).Msg("room reset for another game")
		c.stopRoundTimersLocked()
		c.phase = PhaseLobby
		c.round = 0
		c.answered = false
		c.statsFlushed = false
		if c.hooks.OnReset != nil {
			c.hooks.OnReset(rm)
		}
	}
}

// maybeResetLocked commits the end-of-game consensus. Only the leader
// writes; the vote count is re-read inside the resolver cycle immediately
// before the reset lands.
func (c *Controller) maybeResetLocked(ctx context.Context, rm *models.Room) {
	if rm.Status != models.RoomStatusFinished {
		return
	}
	if len(rm.PlayAgainVotes) < len(rm.Players) {
		return
	}
	if !rm.IsLeader(c.playerID, c.clock.Now().UTC()) {
		return
	}
	reset, err := c.resolver.Reset(ctx, rm.ID, c.playerID)
	if err != nil {
		log.Error().Err(err).Str("room_code", rm.Code).Msg("consensus reset failed")
		return
	}
	c.applySnapshotLocked(ctx, reset)
}

// applySnapshotLocked re-enters reconciliation for a document returned by
// a resolver call made while the lock is already held.
func (c *Controller) applySnapshotLocked(ctx context.Context, rm *models.Room) {
	if rm == nil || (c.view != nil && rm.Version <= c.view.Version) {
		return
	}
	changed := c.view == nil || volatileChanged(c.view, rm)
	c.view = rm
	if changed && rm.Status == models.RoomStatusWaiting && c.hooks.OnLobbyUpdate != nil {
		c.hooks.OnLobbyUpdate(rm)
	}
	c.reactToStatusLocked(ctx, rm)
	if rm.Status == models.RoomStatusPlaying && rm.CurrentQuestion > c.round {
		c.enterRoundLocked(rm.CurrentQuestion)
	}
}

// StartGame generates the question list and opens play. Leader-only; the
// resolver enforces the lease.
func (c *Controller) StartGame(ctx context.Context, gen questions.Generator) error {
	c.mu.Lock()
	view := c.view
	c.mu.Unlock()
	if view == nil {
		return errors.New("session has no room yet")
	}
	qs, err := gen.Generate(view.GameType, view.QuestionCount)
	if err != nil {
		return fmt.Errorf("question generation failed: %w", err)
	}
	rm, err := c.resolver.Start(ctx, view.ID, c.playerID, qs)
	if err != nil {
		return err
	}
	c.applySnapshot(ctx, rm)
	return nil
}

// VotePlayAgain casts this participant's play-again vote. Re-voting is a
// no-op.
func (c *Controller) VotePlayAgain(ctx context.Context) error {
	c.mu.Lock()
	view := c.view
	c.mu.Unlock()
	if view == nil {
		return errors.New("session has no room yet")
	}
	rm, err := c.resolver.SubmitVote(ctx, view.ID, c.playerID)
	if err != nil {
		return err
	}
	c.applySnapshot(ctx, rm)
	return nil
}

// Leave removes this participant from the room. The caller ends the
// session by cancelling Run's context.
func (c *Controller) Leave(ctx context.Context) error {
	c.mu.Lock()
	view := c.view
	c.mu.Unlock()
	if view == nil {
		return nil
	}
	return c.resolver.Leave(ctx, view.ID, c.playerID)
}

// teardown cancels whatever timer is live. Unsubscribing happens in Run.
func (c *Controller) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRoundTimersLocked()
}

func (c *Controller) stopRoundTimersLocked() {
	if c.roundTicker != nil {
		c.roundTicker.Stop()
		c.roundTicker = nil
	}
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

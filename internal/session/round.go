package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/scoring"
	"github.com/fastbreakhq/fastbreak/internal/stats"
)

// enterRoundLocked opens a round: fresh countdown, cleared answer guard.
// Any previous round timer is cancelled first, so a round never has two
// live timers.
func (c *Controller) enterRoundLocked(round int) {
	c.stopRoundTimersLocked()
	c.round = round
	c.answered = false
	c.remaining = c.view.TimerSeconds
	c.phase = PhaseAnswering
	c.roundTicker = c.clock.NewTicker(time.Second)

	q := c.view.Questions[round]
	log.Debug().
		Str("room_code", c.view.Code).
		Int("round", round).
		Int("timer_seconds", c.remaining).
		Msg("round opened")
	if c.hooks.OnRoundStart != nil {
		c.hooks.OnRoundStart(round, q)
	}
}

// handleRoundTick is the one-second cooperative countdown. Reaching zero
// forces a submission scored as incorrect.
func (c *Controller) handleRoundTick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseAnswering || c.answered {
		return
	}
	c.remaining--
	if c.hooks.OnTick != nil {
		c.hooks.OnTick(c.round, c.remaining)
	}
	if c.remaining <= 0 {
		c.submitLocked(ctx, "", true)
	}
}

// Submit commits a manual guess for the open round. An empty guess is
// rejected; a round already answered (including by a timer expiry racing
// this call) is a no-op.
func (c *Controller) Submit(ctx context.Context, guess string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseAnswering {
		return ErrNotAnswering
	}
	if c.answered {
		return nil
	}
	if strings.TrimSpace(guess) == "" {
		return ErrEmptyGuess
	}
	c.submitLocked(ctx, guess, false)
	return nil
}

// submitLocked is the single commit point for both the manual and the
// timeout path. The answered guard is flipped before any I/O, so the two
// paths cannot both land for one round.
func (c *Controller) submitLocked(ctx context.Context, guess string, timedOut bool) {
	c.answered = true
	if c.roundTicker != nil {
		c.roundTicker.Stop()
		c.roundTicker = nil
	}

	q := c.view.Questions[c.round]
	correct := !timedOut && c.matcher != nil && c.matcher(guess, q.AnswerName())
	points := scoring.Points(correct, c.remaining, c.view.TimerSeconds)
	timeTaken := float64(c.view.TimerSeconds - c.remaining)

	answer := models.Answer{
		QuestionID:       q.ID,
		Submitted:        guess,
		Correct:          correct,
		TimeTakenSeconds: timeTaken,
	}
	rm, err := c.resolver.RecordAnswer(ctx, c.view.ID, c.playerID, answer, points)
	if err != nil {
		// Not retried: the local reveal proceeds and the next poll or
		// push delivery re-syncs whatever the store ended up with.
		log.Error().
			Err(err).
			Str("room_code", c.view.Code).
			Int("round", c.round).
			Msg("answer write failed")
	}

	c.phase = PhaseRevealed
	c.graceTimer = c.clock.NewTimer(time.Duration(c.cfg.GraceSeconds) * time.Second)

	log.Info().
		Str("room_code", c.view.Code).
		Int("round", c.round).
		Bool("correct", correct).
		Bool("timed_out", timedOut).
		Int("points", points).
		Msg("answer revealed")
	if c.hooks.OnReveal != nil {
		c.hooks.OnReveal(RevealResult{
			Round:     c.round,
			Question:  q,
			Submitted: guess,
			Correct:   correct,
			Points:    points,
			TimedOut:  timedOut,
		})
	}

	// Applied after the reveal so a document that has already moved past
	// this round supersedes it rather than the other way around.
	if rm != nil {
		c.applySnapshotLocked(ctx, rm)
	}
}

// Advance explicitly moves past a reveal without waiting out the grace
// period.
func (c *Controller) Advance(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(ctx)
}

// handleGraceExpired is the bounded auto-advance that keeps an idle or
// disconnected participant from stalling everyone else.
func (c *Controller) handleGraceExpired(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(ctx)
}

// advanceLocked closes a reveal. Only the leader commits the shared index
// or the finish transition; everyone else simply waits for the document to
// move. A failed leader write re-arms the grace timer so the session
// cannot wedge on one lost write.
func (c *Controller) advanceLocked(ctx context.Context) {
	if c.phase != PhaseRevealed {
		return
	}
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}

	next := c.round + 1
	isLeader := c.view.IsLeader(c.playerID, c.clock.Now().UTC())

	if next >= len(c.view.Questions) {
		// Completed round equals the declared question count.
		c.phase = PhaseFinished
		if !isLeader {
			return
		}
		rm, err := c.resolver.SetStatus(ctx, c.view.ID, c.playerID, models.RoomStatusFinished)
		if err != nil {
			log.Error().Err(err).Str("room_code", c.view.Code).Msg("finish transition failed")
			c.phase = PhaseRevealed
			c.graceTimer = c.clock.NewTimer(time.Duration(c.cfg.GraceSeconds) * time.Second)
			return
		}
		c.applySnapshotLocked(ctx, rm)
		return
	}

	if !isLeader {
		// Stay on the reveal; reconciliation moves us when the index does.
		return
	}
	rm, err := c.resolver.AdvanceQuestion(ctx, c.view.ID, c.playerID, next)
	if err != nil {
		log.Error().Err(err).Str("room_code", c.view.Code).Int("next", next).Msg("question advance failed")
		c.graceTimer = c.clock.NewTimer(time.Duration(c.cfg.GraceSeconds) * time.Second)
		return
	}
	c.applySnapshotLocked(ctx, rm)
}

// finishLocked reacts to the finished status: timers die, the phase pins,
// and the leader reports one statistics record per player.
func (c *Controller) finishLocked(ctx context.Context, rm *models.Room) {
	c.stopRoundTimersLocked()
	c.phase = PhaseFinished
	log.Info().Str("room_code", rm.Code).Msg("game finished")
	if c.hooks.OnGameFinish != nil {
		c.hooks.OnGameFinish(rm)
	}
	if !rm.IsLeader(c.playerID, c.clock.Now().UTC()) {
		return
	}
	if c.statsFlushed {
		return
	}
	c.statsFlushed = true
	finishedAt := c.clock.Now().UTC()
	for i := range rm.Players {
		rec := stats.FromPlayer(rm, &rm.Players[i], finishedAt)
		if err := c.sink.RecordGame(ctx, rec); err != nil {
			log.Error().
				Err(err).
				Str("room_code", rm.Code).
				Str("player_id", rec.PlayerID.String()).
				Msg("stats record failed")
		}
	}
}

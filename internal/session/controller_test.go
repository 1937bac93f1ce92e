package session

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastbreakhq/fastbreak/internal/match"
	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/questions"
	"github.com/fastbreakhq/fastbreak/internal/room"
	"github.com/fastbreakhq/fastbreak/internal/stats"
)

// captureSink records every stats delivery for inspection.
type captureSink struct {
	mu   sync.Mutex
	recs []stats.PlayerGameStats
}

func (s *captureSink) RecordGame(_ context.Context, rec stats.PlayerGameStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// counters tallies hook invocations.
type counters struct {
	gameStart, gameFinish, reset, rounds, reveals int
}

func countingHooks(c *counters) Hooks {
	return Hooks{
		OnGameStart:  func(*models.Room) { c.gameStart++ },
		OnGameFinish: func(*models.Room) { c.gameFinish++ },
		OnReset:      func(*models.Room) { c.reset++ },
		OnRoundStart: func(int, models.Question) { c.rounds++ },
		OnReveal:     func(RevealResult) { c.reveals++ },
	}
}

type fixture struct {
	resolver *room.Resolver
	clock    *clockwork.FakeClock
	room     *models.Room
	host     uuid.UUID
	guest    uuid.UUID
	hostCtl  *Controller
	guestCtl *Controller
	hostN    *counters
	guestN   *counters
	sink     *captureSink
}

// newFixture builds a two-player room with both controllers primed on the
// current document. Tests drive the controllers' internals directly
// instead of running the reconciliation loop, so everything stays
// deterministic.
func newFixture(t *testing.T, questionCount int) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	resolver := room.NewResolverWithClock(room.NewMemoryStore(), clock)

	host := uuid.New()
	guest := uuid.New()
	rm, err := resolver.CreateRoom(ctx, host, "host", room.CreateRoomOptions{
		MaxPlayers:    2,
		QuestionCount: questionCount,
		TimerSeconds:  15,
	})
	require.NoError(t, err)
	_, err = resolver.Join(ctx, rm.Code, guest, "guest")
	require.NoError(t, err)

	f := &fixture{
		resolver: resolver,
		clock:    clock,
		room:     rm,
		host:     host,
		guest:    guest,
		hostN:    &counters{},
		guestN:   &counters{},
		sink:     &captureSink{},
	}
	f.hostCtl = NewController(resolver, nil, host, match.Match, f.sink, countingHooks(f.hostN), DefaultConfig()).WithClock(clock)
	f.guestCtl = NewController(resolver, nil, guest, match.Match, nil, countingHooks(f.guestN), DefaultConfig()).WithClock(clock)

	f.sync(t, f.hostCtl)
	f.sync(t, f.guestCtl)
	return f
}

// sync simulates one poll delivery: fetch latest, replace local view.
func (f *fixture) sync(t *testing.T, c *Controller) {
	t.Helper()
	rm, err := f.resolver.Get(context.Background(), f.room.ID)
	require.NoError(t, err)
	c.applySnapshot(context.Background(), rm)
}

// tick advances both countdowns by n seconds.
func (f *fixture) tick(n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		f.hostCtl.handleRoundTick(ctx)
		f.guestCtl.handleRoundTick(ctx)
	}
}

func TestTwoPlayerGameScoresFiveRounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	gen := questions.NewBankGenerator(nil, 42)
	require.NoError(t, f.hostCtl.StartGame(ctx, gen))
	f.sync(t, f.guestCtl)

	require.Equal(t, PhaseAnswering, f.hostCtl.Phase())
	require.Equal(t, PhaseAnswering, f.guestCtl.Phase())

	for round := 0; round < 5; round++ {
		// Burn ten of the fifteen seconds, then answer correctly with
		// five remaining.
		f.tick(10)
		answer := f.hostCtl.Snapshot().Questions[round].AnswerName()
		require.NoError(t, f.hostCtl.Submit(ctx, answer))
		require.NoError(t, f.guestCtl.Submit(ctx, answer))

		require.Equal(t, PhaseRevealed, f.hostCtl.Phase())

		// Host leads: it commits the advance (or the finish); the guest
		// follows through reconciliation.
		f.hostCtl.Advance(ctx)
		f.guestCtl.Advance(ctx)
		f.sync(t, f.guestCtl)
	}

	require.Equal(t, PhaseFinished, f.hostCtl.Phase())
	require.Equal(t, PhaseFinished, f.guestCtl.Phase())

	final, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoomStatusFinished, final.Status)
	for _, p := range final.Players {
		// 5 rounds x (100 + floor(5/15*50)) = 5 x 116 = 580.
		assert.Equal(t, 580, p.Score)
		assert.Len(t, p.Answers, 5)
	}

	// Exactly-once transitions on both clients.
	assert.Equal(t, 1, f.hostN.gameStart)
	assert.Equal(t, 1, f.guestN.gameStart)
	assert.Equal(t, 1, f.hostN.gameFinish)
	assert.Equal(t, 1, f.guestN.gameFinish)
	assert.Equal(t, 5, f.hostN.rounds)
	assert.Equal(t, 5, f.guestN.rounds)

	// The leader flushed one stats record per player.
	require.Len(t, f.sink.recs, 2)
	for _, rec := range f.sink.recs {
		assert.Equal(t, 580, rec.Score)
		assert.Equal(t, 5, rec.CorrectCount)
		assert.Equal(t, 5, rec.QuestionsAnswered)
		assert.Equal(t, float64(50), rec.TimeTakenSeconds)
	}
}

func TestPlayAgainConsensusResetsRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	gen := questions.NewBankGenerator(nil, 7)
	require.NoError(t, f.hostCtl.StartGame(ctx, gen))
	f.sync(t, f.guestCtl)

	for round := 0; round < 2; round++ {
		f.tick(3)
		answer := f.hostCtl.Snapshot().Questions[round].AnswerName()
		require.NoError(t, f.hostCtl.Submit(ctx, answer))
		require.NoError(t, f.guestCtl.Submit(ctx, "wrong player entirely zz"))
		f.hostCtl.Advance(ctx)
		f.guestCtl.Advance(ctx)
		f.sync(t, f.guestCtl)
	}

	require.Equal(t, PhaseFinished, f.hostCtl.Phase())

	// Guest votes first: not unanimous, nothing happens.
	require.NoError(t, f.guestCtl.VotePlayAgain(ctx))
	mid, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, mid.Status)

	// Host's vote completes the set; as leader it commits the reset.
	f.sync(t, f.hostCtl)
	require.NoError(t, f.hostCtl.VotePlayAgain(ctx))

	final, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusWaiting, final.Status)
	assert.Empty(t, final.Questions)
	assert.Empty(t, final.PlayAgainVotes)
	for _, p := range final.Players {
		assert.Zero(t, p.Score)
		assert.Empty(t, p.Answers)
	}
	require.Len(t, final.Players, 2)

	assert.Equal(t, 1, f.hostN.reset)
	f.sync(t, f.guestCtl)
	assert.Equal(t, 1, f.guestN.reset)
	assert.Equal(t, PhaseLobby, f.guestCtl.Phase())
}

func TestFinishedUnreachableBeforeLastRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 3)))

	for round := 0; round < 2; round++ {
		f.tick(1)
		require.NoError(t, f.hostCtl.Submit(ctx, "anything at all"))
		f.hostCtl.Advance(ctx)
		// With rounds left, the machine must land back in Answering,
		// never in Finished.
		assert.Equal(t, PhaseAnswering, f.hostCtl.Phase(), "round %d", round)
		snap := f.hostCtl.Snapshot()
		assert.Less(t, snap.CurrentQuestion, snap.QuestionCount)
	}

	f.tick(1)
	require.NoError(t, f.hostCtl.Submit(ctx, "anything at all"))
	f.hostCtl.Advance(ctx)
	assert.Equal(t, PhaseFinished, f.hostCtl.Phase())
}

func TestTimerExpiryForcesIncorrectSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 5)))

	// Let the full countdown lapse.
	f.tick(15)

	assert.Equal(t, PhaseRevealed, f.hostCtl.Phase())
	rm, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	hostPlayer := rm.Players[rm.PlayerIndex(f.host)]
	require.Len(t, hostPlayer.Answers, 1)
	assert.False(t, hostPlayer.Answers[0].Correct)
	assert.Zero(t, hostPlayer.Score)
	assert.Equal(t, float64(15), hostPlayer.Answers[0].TimeTakenSeconds)

	// A manual submit racing in after expiry cannot commit a second answer.
	err = f.hostCtl.Submit(ctx, "late guess")
	assert.ErrorIs(t, err, ErrNotAnswering)
}

func TestAnsweredGuardBlocksTimerAfterSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 5)))

	answer := f.hostCtl.Snapshot().Questions[0].AnswerName()
	require.NoError(t, f.hostCtl.Submit(ctx, answer))

	// Ticks arriving after the submit must not produce a second commit.
	for i := 0; i < 20; i++ {
		f.hostCtl.handleRoundTick(ctx)
	}

	rm, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	hostPlayer := rm.Players[rm.PlayerIndex(f.host)]
	assert.Len(t, hostPlayer.Answers, 1)
	assert.True(t, hostPlayer.Answers[0].Correct)
}

func TestEmptyGuessRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 5)))

	assert.ErrorIs(t, f.hostCtl.Submit(ctx, "   "), ErrEmptyGuess)
	assert.Equal(t, PhaseAnswering, f.hostCtl.Phase())
}

func TestDuplicateSnapshotDeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 5)))

	// The same committed state delivered on both channels: version gating
	// makes the second delivery a no-op.
	f.sync(t, f.guestCtl)
	f.sync(t, f.guestCtl)
	f.sync(t, f.guestCtl)

	assert.Equal(t, 1, f.guestN.gameStart)
	assert.Equal(t, 1, f.guestN.rounds)
}

func TestNonLeaderDoesNotCommitSharedTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 5)))
	f.sync(t, f.guestCtl)

	f.tick(2)
	require.NoError(t, f.guestCtl.Submit(ctx, "some guess here"))
	before, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)

	// The guest advancing its own reveal must not move the shared index.
	f.guestCtl.Advance(ctx)
	after, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentQuestion, after.CurrentQuestion)
	assert.Equal(t, PhaseRevealed, f.guestCtl.Phase())
}

func TestLeaseFailoverMovesSingleWriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	require.NoError(t, f.hostCtl.StartGame(ctx, questions.NewBankGenerator(nil, 5)))
	f.sync(t, f.guestCtl)

	// Host vanishes: its lease expires, the guest claims it on its next
	// poll cycle.
	f.clock.Advance(f.resolver.LeaseTTL() * 2)
	f.guestCtl.maintainLease(ctx, f.room.ID)

	rm, err := f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, f.guest, rm.LeaderID)

	// The guest can now drive the shared index.
	f.sync(t, f.guestCtl)
	f.tick(2)
	require.NoError(t, f.guestCtl.Submit(ctx, "whoever it might be"))
	f.guestCtl.Advance(ctx)

	rm, err = f.resolver.Get(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rm.CurrentQuestion)
}

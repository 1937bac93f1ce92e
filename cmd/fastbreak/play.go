package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fastbreakhq/fastbreak/internal/feed"
	"github.com/fastbreakhq/fastbreak/internal/match"
	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/questions"
	"github.com/fastbreakhq/fastbreak/internal/room"
	"github.com/fastbreakhq/fastbreak/internal/session"
	"github.com/fastbreakhq/fastbreak/internal/stats"
)

type playConfig struct {
	code      string
	name      string
	host      bool
	gameType  string
	questions int
	timer     int
	statsDB   string
}

func newPlayCmd(root *rootConfig) *cobra.Command {
	cfg := &playConfig{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run a headless auto-answering client",
		Long: "Joins a room by code, or creates one with --host, and plays " +
			"rounds automatically. Useful for exercising a deployment end to end.",
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cfg.host && cfg.code == "" {
				return fmt.Errorf("either --code or --host is required")
			}
			return runPlay(cmd.Context(), root, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.code, "code", "", "join code of an existing room (env: FASTBREAK_CODE)")
	fs.StringVar(&cfg.name, "name", "bot", "player name (env: FASTBREAK_NAME)")
	fs.BoolVar(&cfg.host, "host", false, "create a room and start once a second player joins (env: FASTBREAK_HOST)")
	fs.StringVar(&cfg.gameType, "game-type", string(models.GameTypeImageStats), "game type for a hosted room (env: FASTBREAK_GAME_TYPE)")
	fs.IntVar(&cfg.questions, "questions", 0, "question count for a hosted room; 0 uses the default (env: FASTBREAK_QUESTIONS)")
	fs.IntVar(&cfg.timer, "timer", 0, "per-question seconds for a hosted room; 0 uses the default (env: FASTBREAK_TIMER)")
	fs.StringVar(&cfg.statsDB, "stats-db", "", "SQLite file for game statistics; empty disables recording (env: FASTBREAK_STATS_DB)")

	return cmd
}

// playerBot wires session hooks to an auto-answer worker. Hooks run with
// the controller locked, so they only enqueue; the worker goroutine calls
// back into the controller.
type playerBot struct {
	ctrl     *session.Controller
	rounds   chan models.Question
	startCh  chan struct{}
	hosting  bool
	rng      *rand.Rand
	gen      *questions.BankGenerator
	timerSec int
}

func (b *playerBot) hooks() session.Hooks {
	return session.Hooks{
		OnLobbyUpdate: func(rm *models.Room) {
			log.Info().Str("room_code", rm.Code).Int("players", len(rm.Players)).Msg("lobby update")
			if b.hosting && len(rm.Players) >= 2 {
				select {
				case b.startCh <- struct{}{}:
				default:
				}
			}
		},
		OnGameStart: func(rm *models.Room) {
			log.Info().Str("room_code", rm.Code).Int("questions", rm.QuestionCount).Msg("game on")
		},
		OnRoundStart: func(round int, q models.Question) {
			log.Info().Int("round", round).Msg("round started")
			select {
			case b.rounds <- q:
			default:
			}
		},
		OnReveal: func(res session.RevealResult) {
			log.Info().
				Int("round", res.Round).
				Bool("correct", res.Correct).
				Int("points", res.Points).
				Str("answer", res.Question.AnswerName()).
				Msg("round revealed")
		},
		OnGameFinish: func(rm *models.Room) {
			for _, p := range rm.Players {
				log.Info().Str("player", p.Name).Int("score", p.Score).Msg("final score")
			}
		},
		OnReset: func(rm *models.Room) {
			log.Info().Str("room_code", rm.Code).Msg("room reset")
		},
	}
}

// run answers each round after a humanlike delay, guessing correctly most
// of the time.
func (b *playerBot) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.startCh:
			if err := b.ctrl.StartGame(ctx, b.gen); err != nil {
				log.Error().Err(err).Msg("start failed")
			}
		case q := <-b.rounds:
			delay := time.Duration(1+b.rng.Intn(max(b.timerSec/2, 1))) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			guess := q.AnswerName()
			if b.rng.Intn(4) == 0 {
				guess = "no idea honestly"
			}
			if err := b.ctrl.Submit(ctx, guess); err != nil {
				log.Debug().Err(err).Msg("submit skipped")
			}
		}
	}
}

func runPlay(parent context.Context, root *rootConfig, cfg *playConfig) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := setupPool(ctx, databaseConfigFromEnv().DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	resolver := room.NewResolver(room.NewPostgresStore(pool))

	nc, err := feed.Connect(root.natsURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	playerID := uuid.New()
	code := cfg.code
	if cfg.host {
		rm, err := resolver.CreateRoom(ctx, playerID, cfg.name, room.CreateRoomOptions{
			GameType:      models.GameType(cfg.gameType),
			QuestionCount: cfg.questions,
			TimerSeconds:  cfg.timer,
		})
		if err != nil {
			return err
		}
		code = rm.Code
		log.Info().Str("room_code", code).Msg("hosting room, waiting for players")
	} else {
		rm, err := resolver.Join(ctx, code, playerID, cfg.name)
		if err != nil {
			return err
		}
		code = rm.Code
		log.Info().Str("room_code", code).Msg("joined room")
	}

	bot := &playerBot{
		rounds:   make(chan models.Question, 1),
		startCh:  make(chan struct{}, 1),
		hosting:  cfg.host,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		gen:      questions.NewBankGenerator(nil, 0),
		timerSec: cfg.timer,
	}
	if bot.timerSec <= 0 {
		bot.timerSec = 15
	}
	var sink stats.Sink
	if cfg.statsDB != "" {
		sqliteSink, err := stats.NewSQLiteSink(cfg.statsDB)
		if err != nil {
			return err
		}
		defer sqliteSink.Close()
		sink = sqliteSink
	}
	bot.ctrl = session.NewController(resolver, feed.NewSubscriber(nc), playerID, match.Match, sink, bot.hooks(), session.DefaultConfig())

	go bot.run(ctx)
	return bot.ctrl.Run(ctx, code)
}

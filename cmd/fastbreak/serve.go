package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fastbreakhq/fastbreak/internal/feed"
	"github.com/fastbreakhq/fastbreak/internal/gateway"
	"github.com/fastbreakhq/fastbreak/internal/questions"
	"github.com/fastbreakhq/fastbreak/internal/room"
)

type serveConfig struct {
	port        string
	joinBaseURL string
	bankPath    string
	withRelay   bool
}

func newServeCmd(root *rootConfig) *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lobby API, websocket gateway and change-feed relay",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.port, "port", "p", "8080", "port to listen on (env: FASTBREAK_PORT)")
	fs.StringVar(&cfg.joinBaseURL, "join-base-url", "http://localhost:8080/join", "public URL prefix for join QR codes (env: FASTBREAK_JOIN_BASE_URL)")
	fs.StringVar(&cfg.bankPath, "bank", "", "question bank YAML file; empty uses the built-in bank (env: FASTBREAK_BANK)")
	fs.BoolVar(&cfg.withRelay, "with-relay", true, "run the database change relay in-process (env: FASTBREAK_WITH_RELAY)")

	return cmd
}

func runServe(parent context.Context, root *rootConfig, cfg *serveConfig) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := databaseConfigFromEnv().DSN()
	pool, err := setupPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := room.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	resolver := room.NewResolver(store)

	bank, err := loadBank(cfg.bankPath)
	if err != nil {
		return err
	}
	generator := questions.NewBankGenerator(bank, 0)

	nc, err := feed.Connect(root.natsURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go manager.Start(ctx)

	consumer := gateway.NewSnapshotConsumer(manager, nc)
	errCh := make(chan error, 2)
	go func() {
		errCh <- consumer.Start(ctx)
	}()

	if cfg.withRelay {
		db, err := setupDatabase(dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		relayCfg := feed.DefaultRelayConfig()
		relayCfg.DatabaseURL = dsn
		relay, err := feed.NewRelay(db, feed.NewNATSPublisher(nc), relayCfg)
		if err != nil {
			return err
		}
		go func() {
			errCh <- relay.Start(ctx)
		}()
	}

	api := gateway.NewAPI(resolver, generator, manager, cfg.joinBaseURL)
	srv := gateway.NewServer(api, cfg.port)

	go func() {
		select {
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("background worker exited unexpectedly")
				stop()
			}
		case <-ctx.Done():
		}
	}()

	return gateway.Serve(ctx, srv)
}

func loadBank(path string) (*questions.Bank, error) {
	if path == "" {
		return questions.DefaultBank(), nil
	}
	return questions.LoadBank(path)
}

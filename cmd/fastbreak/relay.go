package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fastbreakhq/fastbreak/internal/feed"
)

func newRelayCmd(root *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the database change relay on its own",
		Long: "Listens for room write notifications in Postgres and republishes " +
			"each committed room document as a snapshot on NATS. Run this " +
			"standalone when the gateway is deployed with --with-relay=false.",
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), root)
		},
	}
}

func runRelay(parent context.Context, root *rootConfig) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := databaseConfigFromEnv().DSN()
	db, err := setupDatabase(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	nc, err := feed.Connect(root.natsURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	cfg := feed.DefaultRelayConfig()
	cfg.DatabaseURL = dsn
	relay, err := feed.NewRelay(db, feed.NewNATSPublisher(nc), cfg)
	if err != nil {
		return err
	}

	log.Info().Msg("starting change relay")
	return relay.Start(ctx)
}

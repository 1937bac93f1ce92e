package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rootConfig carries the flags shared by every subcommand. Each flag can
// also be set through the environment with the FASTBREAK_ prefix, e.g.
// FASTBREAK_NATS_URL.
type rootConfig struct {
	natsURL string
	verbose bool
}

func newRootCmd() *cobra.Command {
	cfg := &rootConfig{}

	cmd := &cobra.Command{
		Use:           "fastbreak",
		Short:         "Multiplayer NBA trivia session engine",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			bindEnv(cmd.Flags())
			bindEnv(cmd.InheritedFlags())
			if cfg.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&cfg.natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL (env: FASTBREAK_NATS_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: FASTBREAK_VERBOSE)")

	cmd.AddCommand(newServeCmd(cfg))
	cmd.AddCommand(newRelayCmd(cfg))
	cmd.AddCommand(newPlayCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

// bindEnv overlays FASTBREAK_* environment variables onto any flag the user
// did not set explicitly.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("FASTBREAK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

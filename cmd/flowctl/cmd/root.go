// Package cmd provides the command-line interface for the flow rig API.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RMahshie/flowrig/internal/client"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "flowctl drives a flow rig server from the command line.",
	Long: `flowctl drives a flow rig server from the command line. ` +
		`It connects the pump and flow meter, runs frequency sweeps, ` +
		`and downloads the collected data as CSV.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.PersistentFlags().String("server", client.DefaultServer, "flow rig API address (env FLOWCTL_SERVER)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log requests")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindEnv("server", "FLOWCTL_SERVER")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newClient() *client.Client {
	server := viper.GetString("server")
	log.Debug().Str("server", server).Msg("Using flow rig server")
	return client.New(server)
}

// fatal logs err and exits
func fatal(err error, msg string) {
	log.Fatal().Err(err).Msg(msg)
}

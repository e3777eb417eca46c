package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	debug      bool
	configPath string
	output     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "remotesign",
	Short: "Sign PDF documents with a remote qualified signature service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
		if output != outputJSON && output != outputYAML {
			slog.Error("unsupported output format", slog.String("output", output))
			os.Exit(1)
		}
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is remotesign.yaml)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", outputJSON, "Output format (json, yaml)")
}

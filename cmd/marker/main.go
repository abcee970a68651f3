// Command marker trains and runs binary image segmentation models from
// the command line.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	root := &cobra.Command{
		Use:           "marker",
		Short:         "Train and run binary image segmentation models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCreateCommand(),
		newTrainCommand(),
		newMarkCommand(),
		newInfoCommand(),
	)

	if err := root.Execute(); err != nil {
		newLogger().Error("command failed", "error", err)
		os.Exit(1)
	}
}

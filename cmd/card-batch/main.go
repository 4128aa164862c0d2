package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cardscan/internal/common"
)

var (
	inmem   bool
	pocName string
	verbose bool
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		printError("card-batch: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card-batch",
		Short: "Extract contacts from business card images",
		Long: `card-batch runs the card extraction pipeline locally: it loads card images from disk,
extracts contacts through the configured vision model, stores them and exports them to XLSX or CSV.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "Use a private in-memory SQLite store")
	cmd.PersistentFlags().StringVar(&pocName, "poc", "", "Point of contact who collected the cards (defaults to POC_NAME)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	cmd.AddCommand(
		newExtractCmd(),
		newWatchCmd(),
		newExportCmd(),
		newListCmd(),
		newClearCmd(),
		newHealthCmd(),
	)
	return cmd
}

// setup loads config and installs the logger every subcommand shares.
func setup() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if pocName == "" {
		pocName = cfg.Pipeline.POCName
	}
	return cfg, logger, nil
}

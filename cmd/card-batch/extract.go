package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/app"
	"github.com/joseph-ayodele/cardscan/internal/async"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/export"
	"github.com/joseph-ayodele/cardscan/internal/ingest"
)

func newExtractCmd() *cobra.Command {
	var (
		out        string
		format     string
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "extract <dir>",
		Short: "Extract contacts from every card image under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := exportFormat(format, out)
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			uploads, files, stats, err := ingest.LoadDirectory(ctx, args[0], skipHidden)
			if err != nil {
				return err
			}
			for _, f := range files {
				if f.Err != "" {
					logger.Warn("skipping file", "path", f.Path, "error", f.Err)
				}
			}
			logger.Info("directory loaded",
				"scanned", stats.Scanned, "matched", stats.Matched,
				"loaded", stats.Loaded, "failed", stats.Failed)
			if len(uploads) == 0 {
				return fmt.Errorf("no card images found under %s", args[0])
			}

			h, err := a.Dispatcher.Submit(ctx, async.Batch{POCName: pocName, Files: uploads})
			if err != nil {
				return err
			}
			if err := h.Wait(ctx); err != nil {
				return err
			}
			done, failed := printResults(h.Results())

			if out != "" {
				if err := writeExport(ctx, a, out, f); err != nil {
					return err
				}
			}
			fmt.Printf("\n%d done, %d failed", done, failed)
			if out != "" {
				fmt.Printf(", exported to %s", out)
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write an export of the stored contacts to this path")
	cmd.Flags().StringVar(&format, "format", "", "Export format, xlsx or csv (default from the --out extension)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip hidden files and directories")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		initialScan bool
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Extract contacts from card images as they appear under the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			a.Dispatcher.OnTransition(func(tr async.Transition) {
				if !tr.To.IsTerminal() {
					return
				}
				logger.Info("unit finished",
					"source", tr.Unit.SourceName,
					"status", tr.To,
					"contacts", len(tr.Unit.StoreIDs),
					"error", tr.Unit.ErrorDetail)
			})

			paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				Debounce:    debounce,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			logger.Info("watching", "roots", args, "poc", pocName)
			for {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-errs:
					if !ok {
						return nil
					}
					logger.Warn("watcher error", "error", err)
				case p, ok := <-paths:
					if !ok {
						return nil
					}
					up, err := ingest.LoadPath(p)
					if err != nil {
						logger.Warn("skipping file", "path", p, "error", err)
						continue
					}
					if _, err := a.Dispatcher.Submit(ctx, async.Batch{POCName: pocName, Files: []entity.Upload{up}}); err != nil {
						logger.Error("submit failed", "path", p, "error", err)
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&initialScan, "initial-scan", false, "Also extract images already present")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Coalesce bursts of file events")
	return cmd
}

func buildApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app.App, error) {
	var opts []app.Option
	if inmem {
		opts = append(opts, app.InMemory())
	}
	return app.Build(ctx, cfg, logger, opts...)
}

func closeApp(a *app.App, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func writeExport(ctx context.Context, a *app.App, out string, format export.Format) error {
	b, err := a.Exporter.Export(ctx, pocName, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(out, b, 0o644)
}

func printResults(results []async.UnitResult) (done, failed int) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tCONTACTS\tDETAIL")
	for _, r := range results {
		switch r.Unit.Status {
		case constants.StatusDone:
			done++
		case constants.StatusFailed:
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Unit.SourceName, r.Unit.Status, len(r.Records), r.Unit.ErrorDetail)
	}
	_ = tw.Flush()
	return done, failed
}

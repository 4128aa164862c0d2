package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cardscan/internal/app"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/export"
	"github.com/joseph-ayodele/cardscan/internal/repository"
)

// openStore opens and migrates the record store without wiring an extraction client.
func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, repository.ContactRepository, error) {
	dsn := cfg.Database.DSN
	if inmem {
		dsn = app.InMemoryDSN()
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:         dsn,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		db.Close(logger)
		return nil, nil, err
	}
	return db, repository.NewContactRepository(db.Driver, logger), nil
}

func newExportCmd() *cobra.Command {
	var out, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored contacts to an XLSX workbook or CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := exportFormat(format, out)
			if err != nil {
				return err
			}
			if out == "" {
				out = "contacts" + f.Ext()
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, contacts, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(logger)

			b, err := export.NewService(contacts, logger).Export(ctx, pocName, f)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return err
			}
			fmt.Printf("exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default contacts.xlsx or contacts.csv)")
	cmd.Flags().StringVar(&format, "format", "", "xlsx or csv (default from the --out extension, else xlsx)")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the stored contacts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, contacts, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(logger)

			recs, err := contacts.ListAll(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tEMAIL\tPHONE\tPOC\tCREATED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StoreID, r.DisplayName(), deref(r.Company), deref(r.Email), deref(r.Phone),
					deref(r.POCName), r.CreatedAt.Local().Format(time.DateTime))
			}
			_ = tw.Flush()
			fmt.Printf("\n%d contacts\n", len(recs))
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the store without --yes")
			}
			ctx := cmd.Context()
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, contacts, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(logger)

			n, err := contacts.DeleteAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d contacts\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion of every stored contact")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the record store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, contacts, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(logger)

			if err := db.HealthCheck(ctx, timeout, logger); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			recs, err := contacts.ListAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("DB health: OK (%d contacts)\n", len(recs))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "Ping timeout")
	return cmd
}

// exportFormat resolves --format, falling back to the extension of out.
func exportFormat(format, out string) (export.Format, error) {
	if format == "" && strings.EqualFold(filepath.Ext(out), ".csv") {
		return export.FormatCSV, nil
	}
	return export.ParseFormat(format)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
	"github.com/MikeSquared-Agency/Bursary/internal/store"
)

func (o *options) openStore(cmd *cobra.Command) (*store.PostgresStore, error) {
	if o.cfg.Database.URL == "" {
		return nil, errors.New("no database configured (set BURSARY_DATABASE_URL)")
	}
	db, err := store.NewPostgresStore(cmd.Context(), o.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newPublishCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <rubric-file>",
		Short: "Validate a rubric file and publish it to Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := rubric.FormatFromPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read rubric: %w", err)
			}

			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := store.PublishRubric(cmd.Context(), db, data, format)
			if err != nil {
				return err
			}
			opts.logger.Info("rubric published", "version", rec.Version, "id", rec.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", rec.Version)
			return nil
		},
	}
}

func newRubricsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rubrics",
		Short: "List rubrics published to Postgres, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := db.ListRubrics(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tPUBLISHED\tID")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Version, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rubrics to list")
	return cmd
}

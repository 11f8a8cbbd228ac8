package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Bursary/internal/config"
	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
	"github.com/MikeSquared-Agency/Bursary/internal/store"
)

type options struct {
	cfgFile    string
	verbose    bool
	rubricPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "bursaryctl",
		Short: "Offline tooling for the bursary scoring service",
		Long: `bursaryctl scores applications against a rubric, checks result
signatures and manages the rubrics published to Postgres.

Settings come from the same config file and BURSARY_* environment
variables as the service; flags override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "service config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.rubricPath, "rubric", "", "rubric file (default: the configured rubric)")

	root.AddCommand(
		newScoreCmd(opts),
		newVerifyCmd(opts),
		newConfigCmd(opts),
		newPublishCmd(opts),
		newRubricsCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// loadRubric honours --rubric, then the configured source.
func (o *options) loadRubric(ctx context.Context) (*rubric.Rubric, error) {
	var (
		r   *rubric.Rubric
		err error
	)
	switch {
	case o.rubricPath != "":
		r, err = rubric.LoadFile(o.rubricPath)
	case o.cfg.Rubric.Source == config.SourcePostgres:
		var db *store.PostgresStore
		db, err = store.NewPostgresStore(ctx, o.cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		r, err = store.LoadRubric(ctx, db, o.cfg.Rubric.Version)
	default:
		r, err = rubric.LoadFile(o.cfg.Rubric.Path)
	}
	if err != nil {
		return nil, err
	}
	for i, ruleErr := range r.InvalidRules() {
		o.logger.Warn("bonus rule will always be skipped", "rule", i, "name", r.Rules()[i].Name, "error", ruleErr)
	}
	for _, w := range r.Lint() {
		o.logger.Warn("rubric lint", "warning", w)
	}
	return r, nil
}

// openInput returns stdin for "" or "-".
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func decodeInput(cmd *cobra.Command, path string, v any) error {
	in, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := json.NewDecoder(in).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

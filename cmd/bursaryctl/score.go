package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Bursary/internal/scoring"
	"github.com/MikeSquared-Agency/Bursary/internal/signing"
)

func newScoreCmd(opts *options) *cobra.Command {
	var (
		input   string
		secret  string
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a request and print the signed result",
		Long: `Score reads a request of the form

  {"applicant": "A-17", "factors": [{"key": "gpa", "value": "3.5+"}]}

from --input (or stdin) and prints the signed result. With --explain the
per-factor breakdown is printed as well; it exposes weights.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.loadRubric(cmd.Context())
			if err != nil {
				return err
			}

			var req scoring.Request
			if err := decodeInput(cmd, input, &req); err != nil {
				return err
			}
			if req.Factors == nil {
				return errors.New("request has no factors")
			}

			if !cmd.Flags().Changed("secret") {
				secret = opts.cfg.Signing.Secret
			}
			signer := signing.NewSigner(secret)
			if signer.KeySource() == signing.KeyDevFallback {
				opts.logger.Warn("no signing secret configured, using the development fallback key")
			}

			engine := scoring.NewEngine(r, signer, opts.logger)
			res, bd, err := engine.Score(req)
			if err != nil {
				return fmt.Errorf("score: %w", err)
			}

			if explain {
				return printJSON(cmd, struct {
					Result    scoring.Result     `json:"result"`
					Breakdown *scoring.Breakdown `json:"breakdown"`
				}{res, bd})
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "request file (default: stdin)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: SCORING_HMAC_SECRET)")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the scoring breakdown")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Bursary/internal/scoring"
	"github.com/MikeSquared-Agency/Bursary/internal/signing"
)

var errInvalidSignature = errors.New("signature does not match")

func newVerifyCmd(opts *options) *cobra.Command {
	var (
		input  string
		secret string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the signature on a result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res scoring.Result
			if err := decodeInput(cmd, input, &res); err != nil {
				return err
			}
			if res.Signature == "" {
				return errors.New("result has no signature")
			}

			if !cmd.Flags().Changed("secret") {
				secret = opts.cfg.Signing.Secret
			}
			signer := signing.NewSigner(secret)
			if !signer.Verify(res.Payload(), res.Signature) {
				return fmt.Errorf("%w (key: %s)", errInvalidSignature, signer.KeySource())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid (key: %s)\n", signer.KeySource())
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "result file (default: stdin)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: SCORING_HMAC_SECRET)")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Bursary/internal/hermes"
)

func newWatchCmd(opts *options) *cobra.Command {
	var natsURL string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print score events as the service publishes them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if natsURL == "" {
				natsURL = opts.cfg.Hermes.URL
			}
			if natsURL == "" {
				return errors.New("no NATS URL configured (set BURSARY_HERMES_URL or --nats)")
			}

			client, err := hermes.NewNATSClient(cmd.Context(), natsURL, opts.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			err = client.Subscribe(hermes.SubjectAllScores(), func(subject string, data []byte) {
				fmt.Fprintf(out, "%s %s\n", subject, data)
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS URL (default: the configured hermes URL)")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the rubric and print its public view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.loadRubric(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, r.Redacted())
		},
	}
}

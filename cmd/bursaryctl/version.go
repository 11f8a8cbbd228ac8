package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build-time variables, injected via ldflags:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bursaryctl %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
		},
	}
}

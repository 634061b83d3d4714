package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/version"
)

func newVersionCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  positional(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(root.stdout, "leadfinder "+version.Current)
			return nil
		},
	}
}

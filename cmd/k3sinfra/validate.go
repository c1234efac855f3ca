package main

import (
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the topology for dangling references, CIDR overlaps and cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			_, g, err := opts.load()
			if err != nil {
				return err
			}
			if err := g.Validate(); err != nil {
				return err
			}
			logger.Info().
				Int("resources", len(g.Resources())).
				Int("exports", len(g.Exports())).
				Str("stack-file", opts.stackFile).
				Msg("topology is valid")
			return nil
		},
	}
}

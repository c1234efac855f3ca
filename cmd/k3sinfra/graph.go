package main

import (
	"github.com/spf13/cobra"
)

func newGraphCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the dependency graph in Graphviz DOT format",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := opts.load()
			if err != nil {
				return err
			}
			return g.WriteDot(cmd.OutOrStdout())
		},
	}
}

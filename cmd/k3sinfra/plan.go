package main

import (
	"fmt"
	"strings"

	"github/chirauki/aws-k3s-infra/topology"

	"github.com/spf13/cobra"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the creation waves; resources of one wave have no dependency on each other",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := opts.load()
			if err != nil {
				return err
			}
			if err := g.Validate(); err != nil {
				return err
			}
			waves, err := g.Waves()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, wave := range waves {
				fmt.Fprintf(out, "wave %d:\n", i+1)
				for _, name := range wave {
					r, _ := g.Resource(name)
					deps := g.DependsOn(name)
					if len(deps) == 0 {
						fmt.Fprintf(out, "  %-34s %s\n", name, r.Kind())
						continue
					}
					fmt.Fprintf(out, "  %-34s %-24s <- %s\n", name, r.Kind(), strings.Join(deps, ", "))
				}
			}
			printExports(cmd, g)
			return nil
		},
	}
}

func printExports(cmd *cobra.Command, g *topology.Graph) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "outputs:")
	for _, e := range g.Exports() {
		fmt.Fprintf(out, "  %-22s %s.%s\n", e.Name, e.Resource, e.Attribute)
	}
}

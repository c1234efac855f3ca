package main

import (
	"github/chirauki/aws-k3s-infra/preflight"

	"github.com/spf13/cobra"
)

func newPreflightCmd(opts *rootOptions) *cobra.Command {
	var profile string
	var region string

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check that the AMI, key pair and availability zone exist in the target account",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			cfg, g, err := opts.load()
			if err != nil {
				return err
			}
			if region == "" {
				region = cfg.Region
			}

			client, err := preflight.NewEC2Client(cmd.Context(), profile, region)
			if err != nil {
				return err
			}
			report, err := preflight.NewChecker(client, logger).Run(cmd.Context(), g)
			if err != nil {
				return err
			}
			if err := report.Err(); err != nil {
				return err
			}
			logger.Info().Int("checks", len(report.Checks)).Str("region", region).Msg("preflight passed")
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	cmd.Flags().StringVarP(&region, "region", "r", "", "AWS region to use, defaults to aws:region of the stack")

	return cmd
}

package main

import (
	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/stack"
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg, err := config.LoadConfig(ctx)
		if err != nil {
			return err
		}

		g, err := topology.Build(cfg)
		if err != nil {
			return err
		}

		// VPC, routing, security group and cluster nodes
		return stack.NewStack(cfg).Declare(g)
	})
}

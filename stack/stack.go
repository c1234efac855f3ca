// Package stack hands a validated topology to the Pulumi engine, one declaration per resource.
package stack

import (
	"fmt"

	"github/chirauki/aws-k3s-infra/compute"
	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/iam"
	"github/chirauki/aws-k3s-infra/topology"
	"github/chirauki/aws-k3s-infra/vpc"

	"github.com/cockroachdb/errors"
	"github.com/pulumi/pulumi-aws/sdk/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

type Stack struct {
	config   *config.EnvironmentConfig
	vpc      *vpc.Vpc
	iam      *iam.Iam
	compute  *compute.Compute
	declared map[string]pulumi.CustomResource
	outputs  map[string]pulumi.Input
}

func NewStack(cfg *config.EnvironmentConfig) *Stack {
	v := vpc.NewVpc(cfg)
	i := iam.NewIam(cfg)
	return &Stack{
		config:   cfg,
		vpc:      v,
		iam:      i,
		compute:  compute.NewCompute(cfg, v, i),
		declared: make(map[string]pulumi.CustomResource),
		outputs:  make(map[string]pulumi.Input),
	}
}

// Declare validates g and declares its resources dependencies first, then exports
// the requested outputs.
func (s *Stack) Declare(g *topology.Graph) error {
	if err := g.Validate(); err != nil {
		return errors.Wrap(err, "invalid topology")
	}
	order, err := g.Order()
	if err != nil {
		return err
	}

	for _, name := range order {
		r, _ := g.Resource(name)
		res, err := s.declare(r)
		if err != nil {
			return errors.Wrapf(err, "declaring %s %q", r.Kind(), name)
		}
		s.declared[name] = res
	}
	s.config.Ctx.Log.Info(fmt.Sprintf("Declared %d resources", len(order)), nil)

	for _, e := range g.Exports() {
		output, err := s.output(e)
		if err != nil {
			return err
		}
		s.config.Ctx.Export(e.Name, output)
		s.outputs[e.Name] = output
	}
	return nil
}

// Outputs returns the stack outputs exported by Declare, by name.
func (s *Stack) Outputs() map[string]pulumi.Input {
	return s.outputs
}

func (s *Stack) declare(r topology.Resource) (pulumi.CustomResource, error) {
	switch spec := r.Spec.(type) {
	case topology.InstanceProfile:
		return s.iam.CreateInstanceProfile(r.Name, spec)
	case topology.Instance:
		return s.compute.CreateInstance(r.Name, spec)
	default:
		return s.vpc.Declare(r)
	}
}

func (s *Stack) output(e topology.ExportRef) (pulumi.Input, error) {
	res, ok := s.declared[e.Resource]
	if !ok {
		return nil, errors.Newf("export %q: %q was not declared", e.Name, e.Resource)
	}
	switch e.Attribute {
	case topology.AttrID:
		return res.ID(), nil
	case topology.AttrPublicIP:
		if instance, ok := res.(*ec2.Instance); ok {
			return instance.PublicIp, nil
		}
	}
	return nil, errors.Newf("export %q: %q has no %s attribute", e.Name, e.Resource, e.Attribute)
}

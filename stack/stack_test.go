package stack

import (
	"testing"

	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/pulumi/pulumi-aws/sdk/go/aws/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStack() *Stack {
	var cfg config.EnvironmentConfig
	cfg.ApplyDefaults()
	return NewStack(&cfg)
}

func TestDeclare_RejectsInvalidTopology(t *testing.T) {
	g := topology.New()
	require.NoError(t, g.Add(topology.Resource{
		Name: "web",
		Spec: topology.Instance{Ami: "ami-1", InstanceType: "t3.small", Subnet: "missing"},
	}))

	err := newTestStack().Declare(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, topology.ErrUnknownReference)
	assert.ErrorIs(t, err, topology.ErrNoSecurityGroup)
	assert.Contains(t, err.Error(), "invalid topology")
}

func TestOutput(t *testing.T) {
	s := newTestStack()
	s.declared["my-vpc"] = &ec2.Vpc{}
	s.declared["master-instance"] = &ec2.Instance{}

	_, err := s.output(topology.ExportRef{Resource: "my-vpc", Export: topology.Export{Name: "vpcId", Attribute: topology.AttrID}})
	assert.NoError(t, err)

	_, err = s.output(topology.ExportRef{Resource: "master-instance", Export: topology.Export{Name: "masterInstanceIp", Attribute: topology.AttrPublicIP}})
	assert.NoError(t, err)

	_, err = s.output(topology.ExportRef{Resource: "my-vpc", Export: topology.Export{Name: "vpcIp", Attribute: topology.AttrPublicIP}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"my-vpc" has no public-ip attribute`)

	_, err = s.output(topology.ExportRef{Resource: "worker9-instance", Export: topology.Export{Name: "worker9InstanceId", Attribute: topology.AttrID}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not declared")
}

func TestDeclare_UnknownKind(t *testing.T) {
	_, err := newTestStack().vpc.Declare(topology.Resource{Name: "web", Spec: topology.Instance{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `vpc cannot declare instance "web"`)
}

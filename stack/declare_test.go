package stack

import (
	"sync"
	"testing"

	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/pulumi/pulumi/sdk/go/common/resource"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	typeInstance                 = "aws:ec2/instance:Instance"
	typeRoute                    = "aws:ec2/route:Route"
	typeRouteTableAssociation    = "aws:ec2/routeTableAssociation:RouteTableAssociation"
	typeSecurityGroup            = "aws:ec2/securityGroup:SecurityGroup"
	typeSubnet                   = "aws:ec2/subnet:Subnet"
	typeRolePolicyAttachment     = "aws:iam/rolePolicyAttachment:RolePolicyAttachment"
	typePolicyAttachment         = "aws:iam/policyAttachment:PolicyAttachment"
	typeInstanceProfile          = "aws:iam/instanceProfile:InstanceProfile"
	ssmPolicyArn                 = "arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"
	nodeRoleName                 = "k3s-node"
	nodeRoleAttachmentName       = nodeRoleName + "-AmazonSSMManagedInstanceCore"
	expectedSecurityGroupRuleSet = 5
)

var publicIPs = map[string]string{
	"nginx-instance":  "203.0.113.10",
	"master-instance": "203.0.113.11",
}

type registration struct {
	typ    string
	inputs resource.PropertyMap
}

// engineMocks records every resource registration and gives it the ID <name>_id.
type engineMocks struct {
	mu        sync.Mutex
	resources map[string]registration
}

func newEngineMocks() *engineMocks {
	return &engineMocks{resources: make(map[string]registration)}
}

func (m *engineMocks) NewResource(typeToken, name string, inputs resource.PropertyMap, provider, id string) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[name] = registration{typ: typeToken, inputs: inputs}

	outputs := inputs.Copy()
	if typeToken == typeInstance {
		ip, ok := publicIPs[name]
		if !ok {
			ip = "203.0.113.99"
		}
		outputs["publicIp"] = resource.NewStringProperty(ip)
	}
	return name + "_id", outputs, nil
}

func (m *engineMocks) Call(token string, args resource.PropertyMap, provider string) (resource.PropertyMap, error) {
	return args, nil
}

func (m *engineMocks) ofType(typeToken string) map[string]resource.PropertyMap {
	found := make(map[string]resource.PropertyMap)
	for name, r := range m.resources {
		if r.typ == typeToken {
			found[name] = r.inputs
		}
	}
	return found
}

// declareWithMocks runs Declare for cfg's topology against mocks and returns the
// resolved value of each named string output.
func declareWithMocks(t *testing.T, cfg *config.EnvironmentConfig, mocks *engineMocks, resolve ...string) (map[string]pulumi.Input, map[string]string) {
	t.Helper()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outputs  map[string]pulumi.Input
		resolved = make(map[string]string)
	)

	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		cfg.Ctx = ctx
		g, err := topology.Build(cfg)
		if err != nil {
			return err
		}
		s := NewStack(cfg)
		if err := s.Declare(g); err != nil {
			return err
		}
		outputs = s.Outputs()

		for _, name := range resolve {
			name := name
			out, ok := outputs[name].(pulumi.StringOutput)
			require.True(t, ok, name)
			wg.Add(1)
			out.ApplyT(func(v string) string {
				mu.Lock()
				resolved[name] = v
				mu.Unlock()
				wg.Done()
				return v
			})
		}
		return nil
	}, pulumi.WithMocks(config.DefaultProject, "dev", mocks))
	require.NoError(t, err)

	wg.Wait()
	return outputs, resolved
}

func TestDeclare_Mocked(t *testing.T) {
	var cfg config.EnvironmentConfig
	cfg.ApplyDefaults()
	mocks := newEngineMocks()

	outputs, resolved := declareWithMocks(t, &cfg, mocks, "publicInstanceIp", "masterInstanceIp")

	instances := mocks.ofType(typeInstance)
	require.Len(t, instances, 5)
	for name, inputs := range instances {
		assert.Equal(t, "public-subnet_id", inputs["subnetId"].StringValue(), name)
		sgs := inputs["vpcSecurityGroupIds"].ArrayValue()
		require.Len(t, sgs, 1, name)
		assert.Equal(t, "public-secgrp_id", sgs[0].StringValue(), name)
		assert.Equal(t, "ami-060e277c0d4cce553", inputs["ami"].StringValue(), name)
		assert.Equal(t, "MyKeyPair", inputs["keyName"].StringValue(), name)
		assert.True(t, inputs["associatePublicIpAddress"].BoolValue(), name)
	}
	assert.Equal(t, "t2.micro", instances["nginx-instance"]["instanceType"].StringValue())

	routes := mocks.ofType(typeRoute)
	require.Contains(t, routes, "igw-route")
	assert.Equal(t, "internet-gateway_id", routes["igw-route"]["gatewayId"].StringValue())
	assert.Equal(t, "public-route-table_id", routes["igw-route"]["routeTableId"].StringValue())
	assert.Equal(t, "0.0.0.0/0", routes["igw-route"]["destinationCidrBlock"].StringValue())

	assocs := mocks.ofType(typeRouteTableAssociation)
	require.Contains(t, assocs, "public-route-table-association")
	assert.Equal(t, "public-subnet_id", assocs["public-route-table-association"]["subnetId"].StringValue())
	assert.Equal(t, "public-route-table_id", assocs["public-route-table-association"]["routeTableId"].StringValue())

	subnets := mocks.ofType(typeSubnet)
	require.Contains(t, subnets, "public-subnet")
	assert.Equal(t, "my-vpc_id", subnets["public-subnet"]["vpcId"].StringValue())
	assert.Equal(t, "10.0.1.0/24", subnets["public-subnet"]["cidrBlock"].StringValue())

	sgs := mocks.ofType(typeSecurityGroup)
	require.Contains(t, sgs, "public-secgrp")
	assert.Equal(t, "my-vpc_id", sgs["public-secgrp"]["vpcId"].StringValue())
	assert.Len(t, sgs["public-secgrp"]["ingress"].ArrayValue(), expectedSecurityGroupRuleSet)

	assert.Empty(t, mocks.ofType(typeInstanceProfile))

	var exported []string
	for name := range outputs {
		exported = append(exported, name)
	}
	assert.ElementsMatch(t, []string{
		"vpcId", "publicSubnetId", "igwId", "publicRouteTableId",
		"publicInstanceId", "publicInstanceIp",
		"masterInstanceId", "masterInstanceIp",
		"worker1InstanceId", "worker1InstanceIp",
		"worker2InstanceId", "worker2InstanceIp",
		"worker3InstanceId", "worker3InstanceIp",
	}, exported)
	assert.Equal(t, "203.0.113.10", resolved["publicInstanceIp"])
	assert.Equal(t, "203.0.113.11", resolved["masterInstanceIp"])
}

func TestDeclare_MockedNodeRole(t *testing.T) {
	cfg := config.EnvironmentConfig{Iam: config.Iam{NodeRoleName: nodeRoleName}}
	cfg.ApplyDefaults()
	mocks := newEngineMocks()

	declareWithMocks(t, &cfg, mocks)

	attachments := mocks.ofType(typeRolePolicyAttachment)
	require.Contains(t, attachments, nodeRoleAttachmentName)
	assert.Equal(t, nodeRoleName, attachments[nodeRoleAttachmentName]["role"].StringValue())
	assert.Equal(t, ssmPolicyArn, attachments[nodeRoleAttachmentName]["policyArn"].StringValue())
	assert.Empty(t, mocks.ofType(typePolicyAttachment), "managed policies must not be attached account-wide")

	profiles := mocks.ofType(typeInstanceProfile)
	require.Contains(t, profiles, topology.InstanceProfileName)
	assert.Equal(t, nodeRoleName, profiles[topology.InstanceProfileName]["role"].StringValue())
	assert.Len(t, mocks.ofType(typeInstance), 5)
}

package vpc

import (
	"fmt"

	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/cockroachdb/errors"
	"github.com/pulumi/pulumi-aws/sdk/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

// Vpc declares the network side of the topology and remembers what it declared,
// so that resources created later can be wired to it by logical name.
type Vpc struct {
	config         *config.EnvironmentConfig
	vpcs           map[string]*ec2.Vpc
	subnets        map[string]*ec2.Subnet
	gateways       map[string]*ec2.InternetGateway
	routeTables    map[string]*ec2.RouteTable
	securityGroups map[string]*ec2.SecurityGroup
}

func NewVpc(cfg *config.EnvironmentConfig) *Vpc {
	return &Vpc{
		config:         cfg,
		vpcs:           make(map[string]*ec2.Vpc),
		subnets:        make(map[string]*ec2.Subnet),
		gateways:       make(map[string]*ec2.InternetGateway),
		routeTables:    make(map[string]*ec2.RouteTable),
		securityGroups: make(map[string]*ec2.SecurityGroup),
	}
}

// Declare creates the Pulumi resource for a network-level topology resource.
func (v *Vpc) Declare(r topology.Resource) (pulumi.CustomResource, error) {
	switch spec := r.Spec.(type) {
	case topology.Network:
		return v.CreateVpc(r.Name, spec)
	case topology.Subnet:
		return v.createSubnet(r.Name, spec)
	case topology.InternetGateway:
		return v.createInternetGateway(r.Name, spec)
	case topology.RouteTable:
		return v.createRouteTable(r.Name, spec)
	case topology.Route:
		return v.createRoute(r.Name, spec)
	case topology.RouteTableAssociation:
		return v.associateRouteTable(r.Name, spec)
	case topology.SecurityGroup:
		return v.createSecurityGroup(r.Name, spec)
	}
	return nil, errors.Newf("vpc cannot declare %s %q", r.Kind(), r.Name)
}

func (v *Vpc) CreateVpc(name string, spec topology.Network) (*ec2.Vpc, error) {
	vpc, err := ec2.NewVpc(v.config.Ctx, name, &ec2.VpcArgs{
		EnableDnsSupport:   pulumi.BoolPtr(true),
		EnableDnsHostnames: pulumi.BoolPtr(true),
		CidrBlock:          pulumi.String(spec.CidrBlock),
		Tags:               v.config.ResourceTags(spec.Tags),
	})
	if err != nil {
		return nil, err
	}

	v.vpcs[name] = vpc
	return vpc, nil
}

func (v *Vpc) Subnet(name string) (*ec2.Subnet, error) {
	subnet, ok := v.subnets[name]
	if !ok {
		return nil, undeclared(topology.KindSubnet, name)
	}
	return subnet, nil
}

func (v *Vpc) SecurityGroup(name string) (*ec2.SecurityGroup, error) {
	sg, ok := v.securityGroups[name]
	if !ok {
		return nil, undeclared(topology.KindSecurityGroup, name)
	}
	return sg, nil
}

func (v *Vpc) vpc(name string) (*ec2.Vpc, error) {
	vpc, ok := v.vpcs[name]
	if !ok {
		return nil, undeclared(topology.KindNetwork, name)
	}
	return vpc, nil
}

func undeclared(kind topology.Kind, name string) error {
	return errors.Newf("%s %q referenced before it was declared", kind, name)
}

func (v *Vpc) logf(format string, args ...interface{}) {
	v.config.Ctx.Log.Debug(fmt.Sprintf(format, args...), nil)
}

package vpc

import (
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/pulumi/pulumi-aws/sdk/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

func (v *Vpc) createSubnet(name string, spec topology.Subnet) (*ec2.Subnet, error) {
	vpc, err := v.vpc(spec.Network)
	if err != nil {
		return nil, err
	}

	subnet, err := ec2.NewSubnet(v.config.Ctx, name, &ec2.SubnetArgs{
		AssignIpv6AddressOnCreation: pulumi.BoolPtr(false),
		MapPublicIpOnLaunch:         pulumi.BoolPtr(spec.MapPublicIPOnLaunch),
		CidrBlock:                   pulumi.String(spec.CidrBlock),
		VpcId:                       vpc.ID(),
		AvailabilityZone:            pulumi.String(spec.AvailabilityZone),
		Tags:                        v.config.ResourceTags(spec.Tags),
	}, pulumi.Parent(vpc))
	if err != nil {
		return nil, err
	}

	v.logf("declared subnet %s (%s in %s)", name, spec.CidrBlock, spec.AvailabilityZone)
	v.subnets[name] = subnet
	return subnet, nil
}

func (v *Vpc) createInternetGateway(name string, spec topology.InternetGateway) (*ec2.InternetGateway, error) {
	vpc, err := v.vpc(spec.Network)
	if err != nil {
		return nil, err
	}

	gw, err := ec2.NewInternetGateway(v.config.Ctx, name, &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  v.config.ResourceTags(spec.Tags),
	}, pulumi.Parent(vpc))
	if err != nil {
		return nil, err
	}

	v.gateways[name] = gw
	return gw, nil
}

func (v *Vpc) createRouteTable(name string, spec topology.RouteTable) (*ec2.RouteTable, error) {
	vpc, err := v.vpc(spec.Network)
	if err != nil {
		return nil, err
	}

	rt, err := ec2.NewRouteTable(v.config.Ctx, name, &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Tags:  v.config.ResourceTags(spec.Tags),
	}, pulumi.Parent(vpc))
	if err != nil {
		return nil, err
	}

	v.routeTables[name] = rt
	return rt, nil
}

func (v *Vpc) createRoute(name string, spec topology.Route) (*ec2.Route, error) {
	rt, ok := v.routeTables[spec.RouteTable]
	if !ok {
		return nil, undeclared(topology.KindRouteTable, spec.RouteTable)
	}
	gw, ok := v.gateways[spec.Gateway]
	if !ok {
		return nil, undeclared(topology.KindInternetGateway, spec.Gateway)
	}

	route, err := ec2.NewRoute(v.config.Ctx, name, &ec2.RouteArgs{
		RouteTableId:         rt.ID(),
		DestinationCidrBlock: pulumi.String(spec.DestinationCidrBlock),
		GatewayId:            gw.ID(),
	}, pulumi.Parent(rt))
	if err != nil {
		return nil, err
	}

	v.logf("declared route %s -> %s", spec.DestinationCidrBlock, spec.Gateway)
	return route, nil
}

func (v *Vpc) associateRouteTable(name string, spec topology.RouteTableAssociation) (*ec2.RouteTableAssociation, error) {
	rt, ok := v.routeTables[spec.RouteTable]
	if !ok {
		return nil, undeclared(topology.KindRouteTable, spec.RouteTable)
	}
	subnet, err := v.Subnet(spec.Subnet)
	if err != nil {
		return nil, err
	}

	return ec2.NewRouteTableAssociation(v.config.Ctx, name, &ec2.RouteTableAssociationArgs{
		SubnetId:     subnet.ID(),
		RouteTableId: rt.ID(),
	}, pulumi.Parent(rt))
}

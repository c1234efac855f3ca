package topology

import (
	"github/chirauki/aws-k3s-infra/config"

	"github.com/cockroachdb/errors"
)

// Logical names of the fixed part of the topology.
const (
	RouteTableName       = "public-route-table"
	RouteName            = "igw-route"
	AssociationName      = "public-route-table-association"
	GatewayName          = "internet-gateway"
	SecurityGroupName    = "public-secgrp"
	InstanceProfileName  = "node-profile"
	LoadBalancerInstance = "nginx-instance"
	MasterInstance       = "master-instance"

	anywhere = "0.0.0.0/0"
)

// Ports opened on the shared security group.
const (
	portSSH     = 22
	portHTTP    = 80
	portHTTPS   = 443
	portK3sAPI  = 6443
	allProtocol = "-1"
)

// Build declares the complete desired state for cfg: the VPC, its public subnet and
// routing to the internet, the shared security group and the cluster instances.
func Build(cfg *config.EnvironmentConfig) (*Graph, error) {
	b := builder{cfg: cfg, g: New()}

	b.add(Resource{
		Name:    cfg.Vpc.Name,
		Spec:    Network{CidrBlock: cfg.Vpc.Cidr, Tags: map[string]string{"Name": cfg.Vpc.Name}},
		Exports: []Export{{"vpcId", AttrID}},
	})

	subnetTags := map[string]string{"Name": cfg.Vpc.Subnet.Name}
	cfg.ClusterTags(subnetTags)
	b.add(Resource{
		Name: cfg.Vpc.Subnet.Name,
		Spec: Subnet{
			Network:             cfg.Vpc.Name,
			CidrBlock:           cfg.Vpc.Subnet.Cidr,
			AvailabilityZone:    cfg.Vpc.Subnet.Az,
			MapPublicIPOnLaunch: true,
			Tags:                subnetTags,
		},
		Exports: []Export{{"publicSubnetId", AttrID}},
	})

	b.add(Resource{
		Name:    GatewayName,
		Spec:    InternetGateway{Network: cfg.Vpc.Name, Tags: map[string]string{"Name": "igw"}},
		Exports: []Export{{"igwId", AttrID}},
	})
	b.add(Resource{
		Name:    RouteTableName,
		Spec:    RouteTable{Network: cfg.Vpc.Name, Tags: map[string]string{"Name": "rt-public"}},
		Exports: []Export{{"publicRouteTableId", AttrID}},
	})
	b.add(Resource{
		Name: RouteName,
		Spec: Route{RouteTable: RouteTableName, Gateway: GatewayName, DestinationCidrBlock: anywhere},
	})
	b.add(Resource{
		Name: AssociationName,
		Spec: RouteTableAssociation{Subnet: cfg.Vpc.Subnet.Name, RouteTable: RouteTableName},
	})

	sgTags := map[string]string{"Name": SecurityGroupName}
	cfg.ClusterTags(sgTags)
	b.add(Resource{
		Name: SecurityGroupName,
		Spec: SecurityGroup{
			Network:     cfg.Vpc.Name,
			Description: "Enable HTTP and SSH access for public instance",
			Ingress:     ingressRules(cfg),
			Egress: []Rule{
				{Description: "all outbound", Protocol: allProtocol, CidrBlocks: []string{anywhere}},
			},
			Tags: sgTags,
		},
	})

	profile := ""
	if cfg.Iam.NodeRoleName != "" {
		profile = InstanceProfileName
		b.add(Resource{
			Name: InstanceProfileName,
			Spec: InstanceProfile{RoleName: cfg.Iam.NodeRoleName, ManagedPolicies: cfg.Iam.ManagedPolicies},
		})
	}

	b.addInstance(LoadBalancerInstance, cfg.Cluster.LoadBalancer.Name, cfg.Cluster.LoadBalancer.InstanceType, profile,
		"publicInstanceId", "publicInstanceIp")
	b.addInstance(MasterInstance, cfg.Cluster.Master.Name, cfg.Cluster.Master.InstanceType, profile,
		"masterInstanceId", "masterInstanceIp")
	for _, worker := range cfg.WorkerNames() {
		b.addInstance(worker+"-instance", worker, cfg.Cluster.Workers.InstanceType, profile,
			worker+"InstanceId", worker+"InstanceIp")
	}

	if b.err != nil {
		return nil, b.err
	}
	return b.g, nil
}

type builder struct {
	cfg *config.EnvironmentConfig
	g   *Graph
	err error
}

func (b *builder) add(r Resource) {
	if b.err != nil {
		return
	}
	if err := b.g.Add(r); err != nil {
		b.err = errors.Wrap(err, "building topology")
	}
}

func (b *builder) addInstance(name, tagName, instanceType, profile, idExport, ipExport string) {
	tags := map[string]string{"Name": tagName}
	b.cfg.ClusterTags(tags)
	b.add(Resource{
		Name: name,
		Spec: Instance{
			Ami:               b.cfg.Cluster.Ami,
			InstanceType:      instanceType,
			KeyName:           b.cfg.Cluster.KeyName,
			Subnet:            b.cfg.Vpc.Subnet.Name,
			SecurityGroups:    []string{SecurityGroupName},
			InstanceProfile:   profile,
			AssociatePublicIP: true,
			Tags:              tags,
		},
		Exports: []Export{{idExport, AttrID}, {ipExport, AttrPublicIP}},
	})
}

func ingressRules(cfg *config.EnvironmentConfig) []Rule {
	if cfg.Firewall.AllowAll {
		return []Rule{
			{Description: "all inbound", Protocol: allProtocol, CidrBlocks: []string{anywhere}},
		}
	}

	admin := cfg.Firewall.AdminCidrs
	apiSources := append(append([]string{}, admin...), cfg.Vpc.Cidr)
	return []Rule{
		{Description: "ssh", Protocol: "tcp", FromPort: portSSH, ToPort: portSSH, CidrBlocks: admin},
		{Description: "http", Protocol: "tcp", FromPort: portHTTP, ToPort: portHTTP, CidrBlocks: []string{anywhere}},
		{Description: "https", Protocol: "tcp", FromPort: portHTTPS, ToPort: portHTTPS, CidrBlocks: []string{anywhere}},
		{Description: "k3s api", Protocol: "tcp", FromPort: portK3sAPI, ToPort: portK3sAPI, CidrBlocks: apiSources},
		{Description: "intra-vpc", Protocol: allProtocol, CidrBlocks: []string{cfg.Vpc.Cidr}},
	}
}

// Package topology describes the desired AWS resources as an explicit dependency graph,
// independently of the Pulumi engine that ends up creating them.
package topology

type Kind string

const (
	KindNetwork               Kind = "network"
	KindSubnet                Kind = "subnet"
	KindInternetGateway       Kind = "internet-gateway"
	KindRouteTable            Kind = "route-table"
	KindRoute                 Kind = "route"
	KindRouteTableAssociation Kind = "route-table-association"
	KindSecurityGroup         Kind = "security-group"
	KindInstanceProfile       Kind = "instance-profile"
	KindInstance              Kind = "instance"
)

// Ref points at another resource of the graph by logical name.
type Ref struct {
	Kind Kind
	Name string
}

// Spec is the kind-specific desired state of a resource.
type Spec interface {
	Kind() Kind
	Refs() []Ref
}

type Attribute string

const (
	AttrID       Attribute = "id"
	AttrPublicIP Attribute = "public-ip"
)

// Export publishes one attribute of a resource as a stack output.
type Export struct {
	Name      string
	Attribute Attribute
}

// Resource is a node of the graph.
type Resource struct {
	Name    string
	Spec    Spec
	Exports []Export
}

func (r Resource) Kind() Kind {
	return r.Spec.Kind()
}

type Network struct {
	CidrBlock string
	Tags      map[string]string
}

func (Network) Kind() Kind  { return KindNetwork }
func (Network) Refs() []Ref { return nil }

type Subnet struct {
	Network             string
	CidrBlock           string
	AvailabilityZone    string
	MapPublicIPOnLaunch bool
	Tags                map[string]string
}

func (Subnet) Kind() Kind { return KindSubnet }
func (s Subnet) Refs() []Ref {
	return []Ref{{KindNetwork, s.Network}}
}

type InternetGateway struct {
	Network string
	Tags    map[string]string
}

func (InternetGateway) Kind() Kind { return KindInternetGateway }
func (g InternetGateway) Refs() []Ref {
	return []Ref{{KindNetwork, g.Network}}
}

type RouteTable struct {
	Network string
	Tags    map[string]string
}

func (RouteTable) Kind() Kind { return KindRouteTable }
func (rt RouteTable) Refs() []Ref {
	return []Ref{{KindNetwork, rt.Network}}
}

type Route struct {
	RouteTable           string
	Gateway              string
	DestinationCidrBlock string
}

func (Route) Kind() Kind { return KindRoute }
func (r Route) Refs() []Ref {
	return []Ref{{KindRouteTable, r.RouteTable}, {KindInternetGateway, r.Gateway}}
}

type RouteTableAssociation struct {
	Subnet     string
	RouteTable string
}

func (RouteTableAssociation) Kind() Kind { return KindRouteTableAssociation }
func (a RouteTableAssociation) Refs() []Ref {
	return []Ref{{KindSubnet, a.Subnet}, {KindRouteTable, a.RouteTable}}
}

// Rule is a single security group rule. Protocol "-1" with ports 0-0 means all traffic.
type Rule struct {
	Description string
	Protocol    string
	FromPort    int
	ToPort      int
	CidrBlocks  []string
}

type SecurityGroup struct {
	Network     string
	Description string
	Ingress     []Rule
	Egress      []Rule
	Tags        map[string]string
}

func (SecurityGroup) Kind() Kind { return KindSecurityGroup }
func (sg SecurityGroup) Refs() []Ref {
	return []Ref{{KindNetwork, sg.Network}}
}

// InstanceProfile is an IAM role assumable by EC2 plus the profile wrapping it.
type InstanceProfile struct {
	RoleName        string
	ManagedPolicies []string
}

func (InstanceProfile) Kind() Kind  { return KindInstanceProfile }
func (InstanceProfile) Refs() []Ref { return nil }

type Instance struct {
	Ami               string
	InstanceType      string
	KeyName           string
	Subnet            string
	SecurityGroups    []string
	InstanceProfile   string
	AssociatePublicIP bool
	Tags              map[string]string
}

func (Instance) Kind() Kind { return KindInstance }
func (i Instance) Refs() []Ref {
	refs := []Ref{{KindSubnet, i.Subnet}}
	for _, sg := range i.SecurityGroups {
		refs = append(refs, Ref{KindSecurityGroup, sg})
	}
	if i.InstanceProfile != "" {
		refs = append(refs, Ref{KindInstanceProfile, i.InstanceProfile})
	}
	return refs
}

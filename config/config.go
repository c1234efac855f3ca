package config

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
	"github.com/pulumi/pulumi/sdk/go/pulumi/config"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProject = "aws-k3s-infra"

	defaultVpcName      = "my-vpc"
	defaultVpcCidr      = "10.0.0.0/16"
	defaultSubnetName   = "public-subnet"
	defaultSubnetCidr   = "10.0.1.0/24"
	defaultSubnetAz     = "ap-southeast-1a"
	defaultClusterName  = "k3s"
	defaultAmi          = "ami-060e277c0d4cce553"
	defaultKeyName      = "MyKeyPair"
	defaultLBName       = "nginx-lb"
	defaultLBType       = "t2.micro"
	defaultMasterName   = "master"
	defaultNodeType     = "t3.small"
	defaultWorkerCount  = 3
	defaultWorkerPrefix = "worker"
	anywhere            = "0.0.0.0/0"
)

// Subnet is the single public subnet of the VPC
type Subnet struct {
	Name string `yaml:"name" validate:"required"`
	Cidr string `yaml:"cidr" validate:"required,cidrv4"`
	Az   string `yaml:"az" validate:"required"`
}

// Vpc config
type Vpc struct {
	Subnet Subnet `yaml:"subnet"`
	Name   string `yaml:"name" validate:"required"`
	Cidr   string `yaml:"cidr" validate:"required,cidrv4"`
}

// Node is a single named instance
type Node struct {
	Name         string `yaml:"name" validate:"required"`
	InstanceType string `yaml:"instanceType" validate:"required"`
}

// Workers are the k3s agent nodes, named <namePrefix><n> starting at 1.
// An unset count means the default; 0 declares no workers.
type Workers struct {
	Count        *int   `yaml:"count" validate:"required,min=0,max=50"`
	NamePrefix   string `yaml:"namePrefix" validate:"required"`
	InstanceType string `yaml:"instanceType" validate:"required"`
}

// Cluster describes the instances making up the k3s cluster
type Cluster struct {
	Name         string  `yaml:"name" validate:"required"`
	Ami          string  `yaml:"ami" validate:"required,startswith=ami-"`
	KeyName      string  `yaml:"keyName" validate:"required"`
	LoadBalancer Node    `yaml:"loadBalancer"`
	Master       Node    `yaml:"master"`
	Workers      Workers `yaml:"workers"`
}

// Firewall controls the rules of the shared security group
type Firewall struct {
	AdminCidrs []string `yaml:"adminCidrs" validate:"min=1,dive,cidrv4"`
	// AllowAll opens every port to every source.
	AllowAll bool `yaml:"allowAll"`
}

// Iam configures an optional instance profile attached to every node
type Iam struct {
	NodeRoleName    string   `yaml:"nodeRoleName"`
	ManagedPolicies []string `yaml:"managedPolicies" validate:"dive,required"`
}

// Env Config
type EnvironmentConfig struct {
	Ctx      *pulumi.Context `yaml:"-" validate:"-"`
	Region   string          `yaml:"-"`
	Vpc      Vpc             `yaml:"vpc"`
	Cluster  Cluster         `yaml:"cluster"`
	Firewall Firewall        `yaml:"firewall"`
	Iam      Iam             `yaml:"iam"`
}

// ApplyDefaults fills every unset field with the values of the reference deployment.
func (e *EnvironmentConfig) ApplyDefaults() {
	setDefault(&e.Vpc.Name, defaultVpcName)
	setDefault(&e.Vpc.Cidr, defaultVpcCidr)
	setDefault(&e.Vpc.Subnet.Name, defaultSubnetName)
	setDefault(&e.Vpc.Subnet.Cidr, defaultSubnetCidr)
	setDefault(&e.Vpc.Subnet.Az, defaultSubnetAz)

	setDefault(&e.Cluster.Name, defaultClusterName)
	setDefault(&e.Cluster.Ami, defaultAmi)
	setDefault(&e.Cluster.KeyName, defaultKeyName)
	setDefault(&e.Cluster.LoadBalancer.Name, defaultLBName)
	setDefault(&e.Cluster.LoadBalancer.InstanceType, defaultLBType)
	setDefault(&e.Cluster.Master.Name, defaultMasterName)
	setDefault(&e.Cluster.Master.InstanceType, defaultNodeType)
	setDefault(&e.Cluster.Workers.NamePrefix, defaultWorkerPrefix)
	setDefault(&e.Cluster.Workers.InstanceType, defaultNodeType)
	if e.Cluster.Workers.Count == nil {
		count := defaultWorkerCount
		e.Cluster.Workers.Count = &count
	}

	if len(e.Firewall.AdminCidrs) == 0 {
		e.Firewall.AdminCidrs = []string{anywhere}
	}
	if e.Iam.NodeRoleName != "" && len(e.Iam.ManagedPolicies) == 0 {
		e.Iam.ManagedPolicies = []string{"AmazonSSMManagedInstanceCore"}
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks field formats. Relationships between resources are checked on the topology.
func (e *EnvironmentConfig) Validate() error {
	if err := validator.New().Struct(e); err != nil {
		return errors.Wrap(err, "invalid stack config")
	}
	return nil
}

// ClusterTags adds the tags the Kubernetes AWS cloud provider uses to discover cluster resources.
func (e *EnvironmentConfig) ClusterTags(tags map[string]string) {
	tags[fmt.Sprintf("kubernetes.io/cluster/%s", e.Cluster.Name)] = "owned"
}

// WorkerNames returns the worker names in index order.
func (e *EnvironmentConfig) WorkerNames() []string {
	if e.Cluster.Workers.Count == nil {
		return nil
	}
	var names []string
	for i := 1; i <= *e.Cluster.Workers.Count; i++ {
		names = append(names, fmt.Sprintf("%s%d", e.Cluster.Workers.NamePrefix, i))
	}
	return names
}

// ResourceTags converts tags to a pulumi.Map, adding the stack and project of the running program.
func (e *EnvironmentConfig) ResourceTags(tags map[string]string) pulumi.Map {
	m := pulumi.Map{}
	for k, v := range tags {
		m[k] = pulumi.String(v)
	}
	if e.Ctx != nil {
		m["pulumi-stack"] = pulumi.String(e.Ctx.Stack())
		m["pulumi-project"] = pulumi.String(e.Ctx.Project())
	}
	return m
}

func LoadConfig(ctx *pulumi.Context) (*EnvironmentConfig, error) {
	var envConfig EnvironmentConfig
	conf := config.New(ctx, "")
	conf.RequireObject("config", &envConfig)
	envConfig.Ctx = ctx
	envConfig.Region = config.New(ctx, "aws").Get("region")
	envConfig.ApplyDefaults()
	if err := envConfig.Validate(); err != nil {
		return nil, err
	}
	return &envConfig, nil
}

type stackFile struct {
	Config map[string]yaml.Node `yaml:"config"`
}

// LoadStackFile reads a Pulumi.<stack>.yaml directly, for tooling that runs outside the engine.
func LoadStackFile(path, project string) (*EnvironmentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading stack file %s", path)
	}
	return ParseStackFile(data, project)
}

// ParseStackFile decodes the <project>:config object and aws:region of a stack file.
func ParseStackFile(data []byte, project string) (*EnvironmentConfig, error) {
	var file stackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing stack file")
	}

	var envConfig EnvironmentConfig
	if node, ok := file.Config[project+":config"]; ok {
		if err := node.Decode(&envConfig); err != nil {
			return nil, errors.Wrapf(err, "decoding %s:config", project)
		}
	}
	if node, ok := file.Config["aws:region"]; ok {
		if err := node.Decode(&envConfig.Region); err != nil {
			return nil, errors.Wrap(err, "decoding aws:region")
		}
	}
	envConfig.ApplyDefaults()
	if err := envConfig.Validate(); err != nil {
		return nil, err
	}
	return &envConfig, nil
}

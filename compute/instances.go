package compute

import (
	"fmt"

	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/iam"
	"github/chirauki/aws-k3s-infra/topology"
	"github/chirauki/aws-k3s-infra/vpc"

	"github.com/cockroachdb/errors"
	"github.com/pulumi/pulumi-aws/sdk/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

type Compute struct {
	config *config.EnvironmentConfig
	vpc    *vpc.Vpc
	iam    *iam.Iam
}

func NewCompute(cfg *config.EnvironmentConfig, vpc *vpc.Vpc, iam *iam.Iam) *Compute {
	return &Compute{
		config: cfg,
		vpc:    vpc,
		iam:    iam,
	}
}

// CreateInstance declares one EC2 instance in its subnet and security groups.
func (c *Compute) CreateInstance(name string, spec topology.Instance) (*ec2.Instance, error) {
	subnet, err := c.vpc.Subnet(spec.Subnet)
	if err != nil {
		return nil, errors.Wrapf(err, "instance %q", name)
	}

	var securityGroups []pulumi.StringInput
	for _, sgName := range spec.SecurityGroups {
		sg, err := c.vpc.SecurityGroup(sgName)
		if err != nil {
			return nil, errors.Wrapf(err, "instance %q", name)
		}
		securityGroups = append(securityGroups, sg.ID())
	}

	args := &ec2.InstanceArgs{
		Ami:                      pulumi.String(spec.Ami),
		InstanceType:             pulumi.String(spec.InstanceType),
		KeyName:                  pulumi.String(spec.KeyName),
		SubnetId:                 subnet.ID().ToStringOutput(),
		VpcSecurityGroupIds:      pulumi.StringArray(securityGroups),
		AssociatePublicIpAddress: pulumi.BoolPtr(spec.AssociatePublicIP),
		Tags:                     c.config.ResourceTags(spec.Tags),
	}
	if spec.InstanceProfile != "" {
		profile, ok := c.iam.InstanceProfile(spec.InstanceProfile)
		if !ok {
			return nil, errors.Newf("instance %q: instance profile %q not declared", name, spec.InstanceProfile)
		}
		args.IamInstanceProfile = profile.Name
	}

	instance, err := ec2.NewInstance(c.config.Ctx, name, args)
	if err != nil {
		return nil, err
	}

	c.config.Ctx.Log.Info(fmt.Sprintf("Declared instance %s (%s, %s)", name, spec.InstanceType, spec.Ami), nil)
	return instance, nil
}

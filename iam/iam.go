package iam

import (
	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/pulumi/pulumi-aws/sdk/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

const (
	managedPolicyArnPrefix = "arn:aws:iam::aws:policy/"
	nodeAssumeRolePolicy   = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Action": "sts:AssumeRole",
      "Effect": "Allow",
      "Principal": {
        "Service": "ec2.amazonaws.com"
      }
    }
  ]
}`
)

type Iam struct {
	config   *config.EnvironmentConfig
	profiles map[string]*iam.InstanceProfile
}

func NewIam(cfg *config.EnvironmentConfig) *Iam {
	return &Iam{
		config:   cfg,
		profiles: make(map[string]*iam.InstanceProfile),
	}
}

// CreateInstanceProfile declares the node role, attaches its AWS managed policies and wraps
// it in an instance profile.
func (i *Iam) CreateInstanceProfile(name string, spec topology.InstanceProfile) (*iam.InstanceProfile, error) {
	role, err := iam.NewRole(i.config.Ctx, spec.RoleName, &iam.RoleArgs{
		Name:             pulumi.String(spec.RoleName),
		AssumeRolePolicy: pulumi.String(nodeAssumeRolePolicy),
		Tags:             i.config.ResourceTags(map[string]string{"Name": spec.RoleName}),
	})
	if err != nil {
		return nil, err
	}

	// PolicyAttachment is exclusive across the account, attach per role instead.
	for _, policy := range spec.ManagedPolicies {
		_, err = iam.NewRolePolicyAttachment(i.config.Ctx, spec.RoleName+"-"+policy, &iam.RolePolicyAttachmentArgs{
			Role:      role.Name,
			PolicyArn: pulumi.String(managedPolicyArnPrefix + policy),
		}, pulumi.Parent(role))
		if err != nil {
			return nil, err
		}
	}

	profile, err := iam.NewInstanceProfile(i.config.Ctx, name, &iam.InstanceProfileArgs{
		Role: role.Name,
	}, pulumi.Parent(role))
	if err != nil {
		return nil, err
	}

	i.config.Ctx.Export(name+"-role-arn", role.Arn)
	i.profiles[name] = profile
	return profile, nil
}

func (i *Iam) InstanceProfile(name string) (*iam.InstanceProfile, bool) {
	profile, ok := i.profiles[name]
	return profile, ok
}

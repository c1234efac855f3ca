package vpc

import (
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/pulumi/pulumi-aws/sdk/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/go/pulumi"
)

func (v *Vpc) createSecurityGroup(name string, spec topology.SecurityGroup) (*ec2.SecurityGroup, error) {
	vpc, err := v.vpc(spec.Network)
	if err != nil {
		return nil, err
	}

	var ingress ec2.SecurityGroupIngressArray
	for _, rule := range spec.Ingress {
		ingress = append(ingress, ec2.SecurityGroupIngressArgs{
			Description: pulumi.String(rule.Description),
			Protocol:    pulumi.String(rule.Protocol),
			FromPort:    pulumi.Int(rule.FromPort),
			ToPort:      pulumi.Int(rule.ToPort),
			CidrBlocks:  stringArray(rule.CidrBlocks),
		})
	}
	var egress ec2.SecurityGroupEgressArray
	for _, rule := range spec.Egress {
		egress = append(egress, ec2.SecurityGroupEgressArgs{
			Description: pulumi.String(rule.Description),
			Protocol:    pulumi.String(rule.Protocol),
			FromPort:    pulumi.Int(rule.FromPort),
			ToPort:      pulumi.Int(rule.ToPort),
			CidrBlocks:  stringArray(rule.CidrBlocks),
		})
	}

	sg, err := ec2.NewSecurityGroup(v.config.Ctx, name, &ec2.SecurityGroupArgs{
		VpcId:       vpc.ID(),
		Description: pulumi.String(spec.Description),
		Ingress:     ingress,
		Egress:      egress,
		Tags:        v.config.ResourceTags(spec.Tags),
	}, pulumi.Parent(vpc))
	if err != nil {
		return nil, err
	}

	v.logf("declared security group %s with %d ingress and %d egress rules", name, len(ingress), len(egress))
	v.securityGroups[name] = sg
	return sg, nil
}

func stringArray(values []string) pulumi.StringArray {
	var arr pulumi.StringArray
	for _, value := range values {
		arr = append(arr, pulumi.String(value))
	}
	return arr
}

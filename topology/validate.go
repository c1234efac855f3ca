package topology

import (
	"net/netip"
	"strconv"

	"github.com/cockroachdb/errors"
)

var (
	ErrUnknownReference = errors.New("unknown reference")
	ErrReferenceKind    = errors.New("reference to wrong kind")
	ErrInvalidCIDR      = errors.New("invalid CIDR block")
	ErrCIDRNotContained = errors.New("CIDR block outside of network")
	ErrNoSecurityGroup  = errors.New("instance without security group")
	ErrInvalidRule      = errors.New("invalid security group rule")
	ErrDuplicateExport  = errors.New("duplicate export")
)

// Validate checks the graph is complete and consistent. Every problem found is
// returned, joined into one error.
func (g *Graph) Validate() error {
	var problems []error
	report := func(err error) {
		problems = append(problems, err)
	}

	for _, r := range g.Resources() {
		for _, ref := range r.Spec.Refs() {
			target, ok := g.resources[ref.Name]
			switch {
			case !ok:
				report(errors.Wrapf(ErrUnknownReference, "%s %q references %s %q", r.Kind(), r.Name, ref.Kind, ref.Name))
			case target.Kind() != ref.Kind:
				report(errors.Wrapf(ErrReferenceKind, "%s %q expects %s %q, found %s", r.Kind(), r.Name, ref.Kind, ref.Name, target.Kind()))
			}
		}

		switch spec := r.Spec.(type) {
		case Network:
			if _, err := parseCIDR(spec.CidrBlock); err != nil {
				report(errors.Wrapf(err, "network %q", r.Name))
			}
		case Subnet:
			g.checkSubnet(r.Name, spec, report)
		case Route:
			if _, err := parseCIDR(spec.DestinationCidrBlock); err != nil {
				report(errors.Wrapf(err, "route %q", r.Name))
			}
		case SecurityGroup:
			for i, rule := range spec.Ingress {
				if err := checkRule(rule); err != nil {
					report(errors.Wrapf(err, "security group %q ingress %d", r.Name, i))
				}
			}
			for i, rule := range spec.Egress {
				if err := checkRule(rule); err != nil {
					report(errors.Wrapf(err, "security group %q egress %d", r.Name, i))
				}
			}
		case Instance:
			if len(spec.SecurityGroups) == 0 {
				report(errors.Wrapf(ErrNoSecurityGroup, "instance %q", r.Name))
			}
		}
	}

	seen := make(map[string]string)
	for _, e := range g.Exports() {
		if owner, ok := seen[e.Name]; ok {
			report(errors.Wrapf(ErrDuplicateExport, "%q on %q and %q", e.Name, owner, e.Resource))
			continue
		}
		seen[e.Name] = e.Resource
	}

	if _, err := g.Waves(); err != nil {
		report(err)
	}

	return errors.Join(problems...)
}

func (g *Graph) checkSubnet(name string, spec Subnet, report func(error)) {
	subnet, err := parseCIDR(spec.CidrBlock)
	if err != nil {
		report(errors.Wrapf(err, "subnet %q", name))
		return
	}
	network, ok := g.resources[spec.Network].Spec.(Network)
	if !ok {
		return
	}
	parent, err := parseCIDR(network.CidrBlock)
	if err != nil {
		return
	}
	if !Contains(parent, subnet) {
		report(errors.Wrapf(ErrCIDRNotContained, "subnet %q %s not within %q %s", name, subnet, spec.Network, parent))
	}
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner netip.Prefix) bool {
	return outer.Bits() <= inner.Bits() && outer.Contains(inner.Addr())
}

func parseCIDR(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(ErrInvalidCIDR, "%q", s)
	}
	if p != p.Masked() {
		return netip.Prefix{}, errors.Wrapf(ErrInvalidCIDR, "%q has host bits set", s)
	}
	return p, nil
}

func checkRule(rule Rule) error {
	switch rule.Protocol {
	case "-1", "all":
		if rule.FromPort != 0 || rule.ToPort != 0 {
			return errors.Wrapf(ErrInvalidRule, "all-traffic rule with ports %d-%d", rule.FromPort, rule.ToPort)
		}
	case "tcp", "udp":
		if rule.FromPort < 0 || rule.ToPort > 65535 || rule.FromPort > rule.ToPort {
			return errors.Wrapf(ErrInvalidRule, "port range %d-%d", rule.FromPort, rule.ToPort)
		}
	case "icmp":
	default:
		if n, err := strconv.Atoi(rule.Protocol); err != nil || n < 0 || n > 255 {
			return errors.Wrapf(ErrInvalidRule, "protocol %q", rule.Protocol)
		}
	}
	if len(rule.CidrBlocks) == 0 {
		return errors.Wrap(ErrInvalidRule, "no CIDR blocks")
	}
	for _, cidr := range rule.CidrBlocks {
		if _, err := parseCIDR(cidr); err != nil {
			return err
		}
	}
	return nil
}

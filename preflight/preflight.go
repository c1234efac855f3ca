// Package preflight looks up, read-only, the pre-existing AWS objects a topology relies on:
// machine images, key pairs and availability zones. Nothing is retried or created.
package preflight

import (
	"context"
	"sort"

	"github/chirauki/aws-k3s-infra/topology"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("not available")
)

const maxConcurrentLookups = 4

// EC2 reports a filtered-out id or name as an API error rather than an empty result.
var notFoundCodes = map[string]bool{
	"InvalidAMIID.NotFound":    true,
	"InvalidAMIID.Malformed":   true,
	"InvalidAMIID.Unavailable": true,
	"InvalidKeyPair.NotFound":  true,
	"InvalidParameterValue":    true,
	"InvalidAvailabilityZone":  true,
}

type EC2API interface {
	DescribeImages(ctx context.Context, params *awsec2.DescribeImagesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeImagesOutput, error)
	DescribeKeyPairs(ctx context.Context, params *awsec2.DescribeKeyPairsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeKeyPairsOutput, error)
	DescribeAvailabilityZones(ctx context.Context, params *awsec2.DescribeAvailabilityZonesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeAvailabilityZonesOutput, error)
}

// NewEC2Client builds an EC2 client from the default credential chain with optional
// profile and region overrides.
func NewEC2Client(ctx context.Context, profile, region string) (*awsec2.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return awsec2.NewFromConfig(cfg), nil
}

type CheckKind string

const (
	CheckImage            CheckKind = "image"
	CheckKeyPair          CheckKind = "key-pair"
	CheckAvailabilityZone CheckKind = "availability-zone"
)

// Check is the outcome of one lookup. Err is nil when the object exists and is usable.
type Check struct {
	Kind   CheckKind
	Target string
	Err    error
}

type Report struct {
	Checks []Check
}

// Err joins the failed checks, nil if all passed.
func (r Report) Err() error {
	var errs []error
	for _, c := range r.Checks {
		if c.Err != nil {
			errs = append(errs, errors.Wrapf(c.Err, "%s %s", c.Kind, c.Target))
		}
	}
	return errors.Join(errs...)
}

type Checker struct {
	api    EC2API
	logger zerolog.Logger
}

func NewChecker(api EC2API, logger zerolog.Logger) *Checker {
	return &Checker{api: api, logger: logger}
}

// Run checks every image, key pair and availability zone g refers to. The returned error
// is only set when the lookups could not run at all; failed checks are in the report.
func (c *Checker) Run(ctx context.Context, g *topology.Graph) (Report, error) {
	checks := targets(g)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentLookups)
	for i := range checks {
		check := &checks[i]
		eg.Go(func() error {
			check.Err = c.lookup(egCtx, check.Kind, check.Target)
			if err := egCtx.Err(); err != nil {
				return err
			}
			event := c.logger.Info()
			if check.Err != nil {
				event = c.logger.Warn().Err(check.Err)
			}
			event.Str("kind", string(check.Kind)).Str("target", check.Target).Msg("preflight check")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, errors.Wrap(err, "running preflight checks")
	}
	return Report{Checks: checks}, nil
}

func (c *Checker) lookup(ctx context.Context, kind CheckKind, target string) error {
	switch kind {
	case CheckImage:
		return c.checkImage(ctx, target)
	case CheckKeyPair:
		return c.checkKeyPair(ctx, target)
	case CheckAvailabilityZone:
		return c.checkAvailabilityZone(ctx, target)
	}
	return errors.Newf("unknown check %q", kind)
}

func (c *Checker) checkImage(ctx context.Context, id string) error {
	out, err := c.api.DescribeImages(ctx, &awsec2.DescribeImagesInput{
		ImageIds: []string{id},
	})
	if err != nil {
		return apiError(err, "DescribeImages")
	}
	if len(out.Images) == 0 {
		return ErrNotFound
	}
	if state := out.Images[0].State; state != types.ImageStateAvailable {
		return errors.Wrapf(ErrUnavailable, "image state %s", state)
	}
	return nil
}

func (c *Checker) checkKeyPair(ctx context.Context, name string) error {
	out, err := c.api.DescribeKeyPairs(ctx, &awsec2.DescribeKeyPairsInput{
		KeyNames: []string{name},
	})
	if err != nil {
		return apiError(err, "DescribeKeyPairs")
	}
	if len(out.KeyPairs) == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Checker) checkAvailabilityZone(ctx context.Context, zone string) error {
	out, err := c.api.DescribeAvailabilityZones(ctx, &awsec2.DescribeAvailabilityZonesInput{
		ZoneNames: []string{zone},
	})
	if err != nil {
		return apiError(err, "DescribeAvailabilityZones")
	}
	for _, az := range out.AvailabilityZones {
		if aws.ToString(az.ZoneName) != zone {
			continue
		}
		if az.State != types.AvailabilityZoneStateAvailable {
			return errors.Wrapf(ErrUnavailable, "zone state %s", az.State)
		}
		return nil
	}
	return ErrNotFound
}

func apiError(err error, operation string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && notFoundCodes[apiErr.ErrorCode()] {
		return errors.Wrapf(ErrNotFound, "%s: %s", operation, apiErr.ErrorCode())
	}
	return errors.Wrap(err, operation)
}

// targets lists the distinct lookups g needs, sorted by kind then target.
func targets(g *topology.Graph) []Check {
	seen := make(map[Check]bool)
	var checks []Check
	add := func(kind CheckKind, target string) {
		c := Check{Kind: kind, Target: target}
		if target == "" || seen[c] {
			return
		}
		seen[c] = true
		checks = append(checks, c)
	}

	for _, r := range g.Resources() {
		switch spec := r.Spec.(type) {
		case topology.Instance:
			add(CheckImage, spec.Ami)
			add(CheckKeyPair, spec.KeyName)
		case topology.Subnet:
			add(CheckAvailabilityZone, spec.AvailabilityZone)
		}
	}
	sort.Slice(checks, func(i, j int) bool {
		if checks[i].Kind != checks[j].Kind {
			return checks[i].Kind < checks[j].Kind
		}
		return checks[i].Target < checks[j].Target
	})
	return checks
}

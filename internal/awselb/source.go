// Package awselb inventories TLS certificates attached to classic ELB
// listeners.
package awselb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/certcheck/certcheck/internal/inventory"
)

// Source labels for the two certificate stores listeners reference.
const (
	iamSourceLabel = "AWS IAM ServerCertificate"
	acmSourceLabel = "AWS ACM Certificate"
)

// iamAPI is the slice of the IAM API the source uses.
type iamAPI interface {
	GetServerCertificate(ctx context.Context, params *iam.GetServerCertificateInput, optFns ...func(*iam.Options)) (*iam.GetServerCertificateOutput, error)
}

// acmAPI is the slice of the ACM API the source uses.
type acmAPI interface {
	DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error)
}

// Source resolves the certificates referenced by classic ELB listeners.
// Listeners point at either an IAM server certificate or an ACM
// certificate; both stores return expiration metadata directly, so no
// certificate parsing happens here.
type Source struct {
	elb elasticloadbalancing.DescribeLoadBalancersAPIClient
	iam iamAPI
	acm acmAPI
}

// NewSource creates a source using clients built from cfg.
func NewSource(cfg aws.Config) *Source {
	return &Source{
		elb: elasticloadbalancing.NewFromConfig(cfg),
		iam: iam.NewFromConfig(cfg),
		acm: acm.NewFromConfig(cfg),
	}
}

// Name returns the source label.
func (s *Source) Name() string { return "aws-elb" }

// Certificates lists every load balancer, collects the certificate ARNs
// its listeners reference, and resolves each ARN once.
func (s *Source) Certificates(ctx context.Context) ([]inventory.Record, error) {
	arns, err := s.listenerCertARNs(ctx)
	if err != nil {
		return nil, err
	}

	var records []inventory.Record
	for _, arn := range arns {
		rec, err := s.resolve(ctx, arn)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// listenerCertARNs returns the distinct certificate ARNs in use across
// all listeners, in first-seen order. Listeners without TLS are skipped.
func (s *Source) listenerCertARNs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var arns []string

	paginator := elasticloadbalancing.NewDescribeLoadBalancersPaginator(s.elb, &elasticloadbalancing.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing load balancers: %w", err)
		}
		for _, lb := range page.LoadBalancerDescriptions {
			for _, ld := range lb.ListenerDescriptions {
				if ld.Listener == nil {
					continue
				}
				arn := aws.ToString(ld.Listener.SSLCertificateId)
				if arn == "" {
					continue
				}
				slog.Debug("listener certificate", "loadBalancer", aws.ToString(lb.LoadBalancerName), "arn", arn)
				if seen[arn] {
					continue
				}
				seen[arn] = true
				arns = append(arns, arn)
			}
		}
	}
	return arns, nil
}

func (s *Source) resolve(ctx context.Context, arn string) (inventory.Record, error) {
	if strings.Contains(arn, ":acm:") {
		return s.resolveACM(ctx, arn)
	}
	return s.resolveIAM(ctx, arn)
}

// resolveIAM looks up an IAM server certificate. The listener holds the
// ARN but the API wants the name, which should be the last ARN segment;
// the metadata ARN is checked to catch that assumption breaking.
func (s *Source) resolveIAM(ctx context.Context, arn string) (inventory.Record, error) {
	name := arn[strings.LastIndex(arn, "/")+1:]

	out, err := s.iam.GetServerCertificate(ctx, &iam.GetServerCertificateInput{
		ServerCertificateName: aws.String(name),
	})
	if err != nil {
		return inventory.Record{}, fmt.Errorf("fetching server certificate %s: %w", name, err)
	}
	if out.ServerCertificate == nil || out.ServerCertificate.ServerCertificateMetadata == nil {
		return inventory.Record{}, fmt.Errorf("server certificate %s has no metadata", name)
	}

	meta := out.ServerCertificate.ServerCertificateMetadata
	if got := aws.ToString(meta.Arn); got != arn {
		return inventory.Record{}, fmt.Errorf("server certificate %s resolved to %s, expected %s", name, got, arn)
	}
	if meta.Expiration == nil {
		return inventory.Record{}, fmt.Errorf("server certificate %s has no expiration", name)
	}

	return inventory.Record{
		Source:   iamSourceLabel,
		Location: name,
		NotAfter: meta.Expiration.UTC(),
	}, nil
}

// resolveACM describes an ACM certificate. The domain name labels the
// record; certificates without one fall back to the ARN tail.
func (s *Source) resolveACM(ctx context.Context, arn string) (inventory.Record, error) {
	out, err := s.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(arn),
	})
	if err != nil {
		return inventory.Record{}, fmt.Errorf("describing certificate %s: %w", arn, err)
	}
	if out.Certificate == nil || out.Certificate.NotAfter == nil {
		return inventory.Record{}, fmt.Errorf("certificate %s has no expiration", arn)
	}

	location := aws.ToString(out.Certificate.DomainName)
	if location == "" {
		location = arn[strings.LastIndex(arn, "/")+1:]
	}

	return inventory.Record{
		Source:   acmSourceLabel,
		Location: location,
		NotAfter: out.Certificate.NotAfter.UTC(),
	}, nil
}

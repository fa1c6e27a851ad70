package awsstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/fossable/outpost/pkg/errkind"
)

// ValidateZone confirms the hosted zone exists and that ingressHost is the
// zone's own domain or a subdomain of it, following
// validate_route53_configuration in the original outpost implementation.
func ValidateZone(ctx context.Context, client Route53API, hostedZoneID, ingressHost string) error {
	zoneID := strings.TrimPrefix(hostedZoneID, "/hostedzone/")

	out, err := client.GetHostedZone(ctx, &route53.GetHostedZoneInput{Id: &zoneID})
	if err != nil {
		return classifyCloudError(err, fmt.Sprintf("looking up hosted zone %q", zoneID))
	}
	if out.HostedZone == nil || out.HostedZone.Name == nil {
		return errkind.New(errkind.ErrCloudRejected, fmt.Sprintf("hosted zone %q has no name", zoneID), nil)
	}

	zoneDomain := strings.TrimSuffix(*out.HostedZone.Name, ".")
	ingressDomain := strings.TrimSuffix(ingressHost, ".")

	if ingressDomain != zoneDomain && !strings.HasSuffix(ingressDomain, "."+zoneDomain) {
		return fmt.Errorf("%w: ingress host %q is not a subdomain of hosted zone domain %q",
			errkind.ErrBadInput, ingressDomain, zoneDomain)
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/fossable/outpost/pkg/endpoint"
	"github.com/fossable/outpost/pkg/errkind"
)

// AWSFlags mirrors the `aws` subcommand's flag set (cmd/outpost's `aws`
// cobra command is the thin glue that fills this in; validation lives here
// and in pkg/endpoint, not in the flag parser itself).
type AWSFlags struct {
	Ingress       []string
	Origin        string
	Regions       []string
	InstanceType  string
	HostedZoneID  string
	Debug         bool
	UseCloudFront bool

	// UploadLimitMbps/DownloadLimitMbps are the root command's global
	// shaping flags (spec §6 "--upload-limit Mbps"), 0 meaning unset.
	UploadLimitMbps   uint
	DownloadLimitMbps uint
}

// Deployment is the validated, parsed form of AWSFlags ready to hand to the
// coordinator.
type Deployment struct {
	Ingresses    []endpoint.Endpoint
	PortMappings []endpoint.PortMapping
	Origin       endpoint.Endpoint
	Region       string

	InstanceType  string
	HostedZoneID  string
	Debug         bool
	UseCloudFront bool

	UploadLimitKbps   *uint
	DownloadLimitKbps *uint
}

// Validate parses and cross-validates the raw flags into a Deployment,
// enforcing spec §4.1's endpoint rules and the 1-10000 shaping bound.
func (f AWSFlags) Validate() (Deployment, error) {
	if len(f.Ingress) == 0 {
		return Deployment{}, fmt.Errorf("%w: at least one --ingress is required", errkind.ErrBadInput)
	}
	if len(f.Regions) == 0 {
		return Deployment{}, fmt.Errorf("%w: at least one --regions entry is required", errkind.ErrBadInput)
	}

	ingresses := make([]endpoint.Endpoint, 0, len(f.Ingress))
	for _, raw := range f.Ingress {
		ep, err := endpoint.Parse(raw, true)
		if err != nil {
			return Deployment{}, err
		}
		ingresses = append(ingresses, ep)
	}

	origin, err := endpoint.Parse(f.Origin, len(ingresses) == 1)
	if err != nil {
		return Deployment{}, err
	}

	opts := endpoint.Options{UseCloudFront: f.UseCloudFront}
	if err := endpoint.ValidateCrossEndpoint(ingresses, origin, opts); err != nil {
		return Deployment{}, err
	}

	mappings, err := endpoint.PortMappings(ingresses)
	if err != nil {
		return Deployment{}, err
	}

	d := Deployment{
		Ingresses:     ingresses,
		PortMappings:  mappings,
		Origin:        origin,
		Region:        f.Regions[0], // Open Question: only the first region is used (§9)
		InstanceType:  f.InstanceType,
		HostedZoneID:  f.HostedZoneID,
		Debug:         f.Debug,
		UseCloudFront: f.UseCloudFront,
	}

	if f.UploadLimitMbps != 0 {
		if err := validateLimit(f.UploadLimitMbps); err != nil {
			return Deployment{}, err
		}
		kbps := f.UploadLimitMbps * 1000
		d.UploadLimitKbps = &kbps
	}
	if f.DownloadLimitMbps != 0 {
		if err := validateLimit(f.DownloadLimitMbps); err != nil {
			return Deployment{}, err
		}
		kbps := f.DownloadLimitMbps * 1000
		d.DownloadLimitKbps = &kbps
	}

	return d, nil
}

// validateLimit enforces spec §6's 1-10000 Mbps bound on the global shaping
// flags.
func validateLimit(mbps uint) error {
	if mbps < 1 || mbps > 10000 {
		return fmt.Errorf("%w: bandwidth limit must be between 1 and 10000 Mbps, got %d", errkind.ErrBadInput, mbps)
	}
	return nil
}

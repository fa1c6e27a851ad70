// Package stacktemplate renders the declarative CloudFormation stack
// description and the NixOS boot-time configuration that together define
// the remote side of the tunnel (spec §4.4, C4).
package stacktemplate

import "github.com/fossable/outpost/pkg/endpoint"

// Params is the full, immutable set of rendered parameters — spec's
// StackRequest. It is built once at deploy time and never mutated.
type Params struct {
	StackName string
	Region    string

	IngressHost     string
	PortMappings    []endpoint.PortMapping
	OriginHost      string
	InstanceType    string
	HostedZoneID    string
	Debug           bool
	UseCloudFront   bool

	// OriginPublicIP is the origin machine's real internet-facing address,
	// used to scope security-group ingress (tunnel handshake, optional SSH).
	OriginPublicIP string

	// Tunnel addressing, from pkg/subnet.SubnetChoice.
	Subnet        string
	ProxyTunnelIP string
	OriginTunnelIP string

	// WireGuard key material. ProxyPrivateKey, OriginPublicKey and
	// PresharedKey travel to the remote side embedded as plain text in the
	// boot script (base64-encoded UserData). The origin's private key is not
	// part of Params and never leaves this process.
	ProxyPrivateKey string
	ProxyPublicKey  string
	OriginPublicKey string
	PresharedKey    string

	// UploadLimitKbps/DownloadLimitKbps are nil when no shaping was
	// requested.
	UploadLimitKbps   *uint
	DownloadLimitKbps *uint
}

// Architecture returns the EC2 architecture this deployment's instance
// type implies.
func (p Params) Architecture() Architecture {
	return DetectArchitecture(p.InstanceType)
}

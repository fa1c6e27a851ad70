// Package endpoint parses the scheme://host[:port] strings and port lists
// that describe the public (ingress) and local (origin) sides of a tunnel,
// and enforces the protocol-homogeneity rules the rest of the pipeline
// relies on.
package endpoint

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fossable/outpost/pkg/errkind"
)

// Protocol is one of the three transports an endpoint may speak.
type Protocol string

const (
	TCP Protocol = "tcp"
	UDP Protocol = "udp"
	TLS Protocol = "tls"
)

func parseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(s)) {
	case TCP:
		return TCP, nil
	case UDP:
		return UDP, nil
	case TLS:
		return TLS, nil
	default:
		return "", fmt.Errorf("%w: unknown scheme %q", errkind.ErrBadInput, s)
	}
}

// Endpoint is one side of the tunnel: where traffic arrives, or where it is
// delivered. Port is optional only for an origin endpoint paired with
// multiple ingresses (§3).
type Endpoint struct {
	Protocol Protocol
	Host     string
	port     uint16
	hasPort  bool
}

// Parse decodes "scheme://host[:port]". If requirePort is set, a missing
// port is rejected rather than left unset.
func Parse(raw string, requirePort bool) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", errkind.ErrBadInput, err)
	}
	if u.Scheme == "" {
		return Endpoint{}, fmt.Errorf("%w: missing scheme in %q", errkind.ErrBadInput, raw)
	}
	proto, err := parseProtocol(u.Scheme)
	if err != nil {
		return Endpoint{}, err
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host in %q", errkind.ErrBadInput, raw)
	}

	ep := Endpoint{Protocol: proto, Host: host}
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: invalid port %q", errkind.ErrBadInput, portStr)
		}
		ep.port = uint16(p)
		ep.hasPort = true
	} else if requirePort {
		return Endpoint{}, fmt.Errorf("%w: missing required port in %q", errkind.ErrBadInput, raw)
	}
	return ep, nil
}

// Port returns the parsed port, or an error if none was present.
func (e Endpoint) Port() (uint16, error) {
	if !e.hasPort {
		return 0, fmt.Errorf("%w: endpoint %q has no port", errkind.ErrBadInput, e.Host)
	}
	return e.port, nil
}

// HasPort reports whether a port was present in the parsed string.
func (e Endpoint) HasPort() bool {
	return e.hasPort
}

// PortMapping is a single (port, protocol) pair to be opened end-to-end.
// Protocol here is restricted to tcp/udp: TLS ingress still forwards as TCP
// at the packet-steering layer.
type PortMapping struct {
	Port     uint16
	Protocol Protocol
}

func wireProtocol(p Protocol) Protocol {
	if p == TLS {
		return TCP
	}
	return p
}

// ParsePortSpec parses a single "P" or "L:P" port list entry, returning the
// local and public ports ("P" yields P for both). PortMapping carries only
// one port, so the local half is not part of any mapping list.
func ParsePortSpec(spec string) (local, public uint16, err error) {
	parts := strings.SplitN(spec, ":", 2)
	switch len(parts) {
	case 1:
		p, perr := strconv.ParseUint(parts[0], 10, 16)
		if perr != nil {
			return 0, 0, fmt.Errorf("%w: invalid port %q", errkind.ErrBadInput, spec)
		}
		return uint16(p), uint16(p), nil
	case 2:
		l, lerr := strconv.ParseUint(parts[0], 10, 16)
		p, perr := strconv.ParseUint(parts[1], 10, 16)
		if lerr != nil || perr != nil {
			return 0, 0, fmt.Errorf("%w: invalid port spec %q", errkind.ErrBadInput, spec)
		}
		return uint16(l), uint16(p), nil
	default:
		return 0, 0, fmt.Errorf("%w: invalid port spec %q", errkind.ErrBadInput, spec)
	}
}

// PortMappings derives the port-mapping list from a parsed ingress list.
// Duplicate ports are not rejected here (spec §4.1) — callers that hand the
// list to C4/C6 must ensure uniqueness themselves.
func PortMappings(ingresses []Endpoint) ([]PortMapping, error) {
	mappings := make([]PortMapping, 0, len(ingresses))
	for _, ing := range ingresses {
		port, err := ing.Port()
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, PortMapping{Port: port, Protocol: wireProtocol(ing.Protocol)})
	}
	return mappings, nil
}

// ValidateProtocols enforces spec §4.1 rule (1) and (2): every ingress
// shares one protocol, and the origin speaks that same protocol.
func ValidateProtocols(ingresses []Endpoint, origin Endpoint) error {
	if len(ingresses) == 0 {
		return fmt.Errorf("%w: at least one ingress is required", errkind.ErrBadInput)
	}
	want := ingresses[0].Protocol
	for _, ing := range ingresses[1:] {
		if ing.Protocol != want {
			return fmt.Errorf("%w: ingress protocols must match (%s vs %s)", errkind.ErrBadInput, want, ing.Protocol)
		}
	}
	if origin.Protocol != want {
		return fmt.Errorf("%w: origin protocol %s does not match ingress protocol %s", errkind.ErrBadInput, origin.Protocol, want)
	}
	return nil
}

// Options groups the remaining cross-endpoint rules (spec §4.1, rules 3-5)
// that depend on deployment flags rather than the endpoints alone.
type Options struct {
	UseCloudFront bool
}

// ValidateCrossEndpoint enforces rules (3)-(5) of spec §4.1.
func ValidateCrossEndpoint(ingresses []Endpoint, origin Endpoint, opts Options) error {
	if err := ValidateProtocols(ingresses, origin); err != nil {
		return err
	}

	hasTLS := false
	for _, ing := range ingresses {
		if ing.Protocol == TLS {
			hasTLS = true
			break
		}
	}
	if hasTLS && len(ingresses) != 1 {
		return fmt.Errorf("%w: TLS ingress requires exactly one ingress endpoint", errkind.ErrBadInput)
	}

	if opts.UseCloudFront {
		if len(ingresses) != 1 {
			return fmt.Errorf("%w: --use-cloudfront requires exactly one ingress endpoint", errkind.ErrBadInput)
		}
		port, err := ingresses[0].Port()
		if err != nil || port != 443 {
			return fmt.Errorf("%w: --use-cloudfront requires the ingress port to be 443", errkind.ErrBadInput)
		}
	}

	if len(ingresses) > 1 && origin.HasPort() {
		return fmt.Errorf("%w: origin must not specify a port when multiple ingresses are declared", errkind.ErrBadInput)
	}

	seen := make(map[PortMapping]struct{}, len(ingresses))
	mappings, err := PortMappings(ingresses)
	if err != nil {
		return err
	}
	for _, m := range mappings {
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: duplicate port mapping %d/%s", errkind.ErrBadInput, m.Port, m.Protocol)
		}
		seen[m] = struct{}{}
	}
	return nil
}

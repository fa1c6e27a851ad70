// Package subnet picks a private /24 for the tunnel interface that does not
// collide with any address already bound to a host interface (spec §4.3).
package subnet

import (
	"fmt"
	"net"
	"strings"

	"github.com/fossable/outpost/pkg/errkind"
)

// candidates is the fixed, ordered pool spec §4.3 names: one two-octet
// "172.B" prefix per second octet in [17, 31], then the two-octet 10.99,
// 10.98 and 10.97, then the one three-octet prefix 192.168.99.
var candidates = buildCandidates()

func buildCandidates() []string {
	list := make([]string, 0, 32)
	for o := 17; o <= 31; o++ {
		list = append(list, fmt.Sprintf("172.%d", o))
	}
	list = append(list, "10.99", "10.98", "10.97", "192.168.99")
	return list
}

// SubnetChoice is the pair of tunnel-interface addresses selected for this
// run: proxyIP is prefix.0.1 and originIP is prefix.0.2 for a two-octet
// prefix, or prefix.1 and prefix.2 for the three-octet one.
type SubnetChoice struct {
	Prefix   string
	ProxyIP  string
	OriginIP string
}

// InterfaceAddrs abstracts net.Interfaces()+Addrs() so tests can supply a
// fixed host address set without touching the real network stack.
type InterfaceAddrs func() ([]net.Addr, error)

// DefaultInterfaceAddrs enumerates every IPv4 address bound to any
// interface on the host.
func DefaultInterfaceAddrs() ([]net.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var addrs []net.Addr
	for _, iface := range ifaces {
		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		addrs = append(addrs, ifAddrs...)
	}
	return addrs, nil
}

// firstNOctets renders addr's leading n octets as a dotted prefix, so a
// candidate can be compared against host addresses truncated to its own
// width instead of always assuming a two-octet "A.B" prefix.
func firstNOctets(addr net.Addr, n int) (string, bool) {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return "", false
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return "", false
	}
	octets := make([]string, n)
	for i := 0; i < n; i++ {
		octets[i] = fmt.Sprintf("%d", ip4[i])
	}
	return strings.Join(octets, "."), true
}

// collides reports whether prefix (of its own octet width) matches any host
// address truncated to that same width.
func collides(addrs []net.Addr, prefix string) bool {
	n := strings.Count(prefix, ".") + 1
	for _, a := range addrs {
		if hostPrefix, ok := firstNOctets(a, n); ok && hostPrefix == prefix {
			return true
		}
	}
	return false
}

// Pick scans the candidate list in order and returns the first whose
// prefix is absent from the host's bound addresses, truncated to that
// candidate's own octet width.
func Pick(getAddrs InterfaceAddrs) (SubnetChoice, error) {
	addrs, err := getAddrs()
	if err != nil {
		return SubnetChoice{}, fmt.Errorf("enumerating interface addresses: %w", err)
	}

	for _, prefix := range candidates {
		if collides(addrs, prefix) {
			continue
		}
		// Two-octet prefixes (e.g. 172.17, 10.99) extend with a third .0
		// octet before the host suffix; the one three-octet prefix
		// (192.168.99) is already a full network and takes the host suffix
		// directly (spec §4.3).
		proxySuffix, originSuffix := ".0.1", ".0.2"
		if strings.Count(prefix, ".") == 2 {
			proxySuffix, originSuffix = ".1", ".2"
		}
		return SubnetChoice{
			Prefix:   prefix,
			ProxyIP:  prefix + proxySuffix,
			OriginIP: prefix + originSuffix,
		}, nil
	}
	return SubnetChoice{}, errkind.New(errkind.ErrNoSubnetAvailable,
		fmt.Sprintf("all %d candidate subnets collide with a host interface", len(candidates)), nil)
}

// Candidates exposes the fixed, ordered pool for diagnostics/testing.
func Candidates() []string {
	out := make([]string, len(candidates))
	copy(out, candidates)
	return out
}

// ParsePrefix is a small helper used by tests to build a synthetic net.Addr.
func ParsePrefix(cidr string) (net.Addr, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(cidr, "/") {
		return nil, fmt.Errorf("expected CIDR, got %q", cidr)
	}
	ipnet.IP = ip
	return ipnet, nil
}

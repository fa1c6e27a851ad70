// Package tunnel renders the origin-side WireGuard configuration and drives
// it through the installed tunnel toolchain (spec §4.6, C6).
package tunnel

import (
	"fmt"
	"strings"

	"github.com/fossable/outpost/pkg/endpoint"
)

// AccountingChain is the iptables chain the boot script and the origin side
// both write per-port-mapping accounting rules into, read back by
// pkg/stats.
const AccountingChain = "OUTPOST_ACCOUNTING"

// Params is everything Render needs to produce wg0.conf.
type Params struct {
	Interface string // tunnel interface name, e.g. "wg0"

	OriginTunnelIP string // this side's address, e.g. 172.17.0.2
	ProxyTunnelIP  string // peer address, e.g. 172.17.0.1
	ProxyPublicIP  string // proxy's real internet address (tunnel Endpoint)

	PrivateKey   string
	PublicKey    string // proxy's public key
	PresharedKey string

	OriginHost   string // where port-mapped traffic is delivered locally
	PortMappings []endpoint.PortMapping

	UploadLimitKbps   *uint
	DownloadLimitKbps *uint
}

const wireguardPort = 51820

// Render produces the wg-quick configuration text: spec §4.6's [Interface]
// section (address, private key, PostUp/PreDown command lists mirrored in
// reverse) and [Peer] section.
func Render(p Params) string {
	setup := setupCommands(p)
	teardown := teardownCommands(setup)

	var b strings.Builder
	fmt.Fprintf(&b, "[Interface]\n")
	fmt.Fprintf(&b, "Address = %s/24\n", p.OriginTunnelIP)
	fmt.Fprintf(&b, "PrivateKey = %s\n", p.PrivateKey)
	for _, cmd := range setup {
		fmt.Fprintf(&b, "PostUp = %s\n", cmd)
	}
	for _, cmd := range teardown {
		fmt.Fprintf(&b, "PreDown = %s\n", cmd)
	}
	fmt.Fprintf(&b, "\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
	fmt.Fprintf(&b, "PresharedKey = %s\n", p.PresharedKey)
	fmt.Fprintf(&b, "Endpoint = %s:%d\n", p.ProxyPublicIP, wireguardPort)
	fmt.Fprintf(&b, "AllowedIPs = %s/32\n", p.ProxyTunnelIP)
	fmt.Fprintf(&b, "PersistentKeepalive = 25\n")
	return b.String()
}

// setupCommands builds the ordered setup list from spec §4.6's numbered
// subset. Each entry is a single shell command wg-quick runs via `sh -c`.
func setupCommands(p Params) []string {
	var cmds []string

	cmds = append(cmds,
		fmt.Sprintf("iptables -A INPUT -i %s -s %s -m state --state ESTABLISHED,RELATED -j ACCEPT", p.Interface, p.ProxyTunnelIP),
		fmt.Sprintf("iptables -A FORWARD -o %s -d %s -j ACCEPT", p.Interface, p.ProxyTunnelIP),
	)

	if p.UploadLimitKbps != nil {
		cmds = append(cmds,
			fmt.Sprintf("tc qdisc add dev %s root handle 1: htb default 10", p.Interface),
			fmt.Sprintf("tc class add dev %s parent 1: classid 1:10 htb rate %dkbit", p.Interface, *p.UploadLimitKbps),
		)
	}

	if p.DownloadLimitKbps != nil {
		cmds = append(cmds,
			"modprobe ifb numifbs=1",
			"ip link set dev ifb0 up",
			fmt.Sprintf("tc qdisc add dev %s ingress", p.Interface),
			fmt.Sprintf("tc filter add dev %s parent ffff: protocol ip u32 match u32 0 0 action mirred egress redirect dev ifb0", p.Interface),
			"tc qdisc add dev ifb0 root handle 1: htb default 10",
			fmt.Sprintf("tc class add dev ifb0 parent 1: classid 1:10 htb rate %dkbit", *p.DownloadLimitKbps),
		)
	}

	cmds = append(cmds, fmt.Sprintf("iptables -N %s", AccountingChain))

	for _, m := range p.PortMappings {
		proto := string(m.Protocol)
		cmds = append(cmds,
			fmt.Sprintf("iptables -A INPUT -i %s -s %s -p %s --dport %d -j ACCEPT", p.Interface, p.ProxyTunnelIP, proto, m.Port),
			fmt.Sprintf("iptables -A FORWARD -s %s -p %s -j ACCEPT", p.ProxyTunnelIP, proto),
			fmt.Sprintf("iptables -t nat -A PREROUTING -i %s -s %s -p %s --dport %d -j DNAT --to-destination %s:%d", p.Interface, p.ProxyTunnelIP, proto, m.Port, p.OriginHost, m.Port),
			fmt.Sprintf("iptables -t nat -A POSTROUTING -d %s -p %s --dport %d -j MASQUERADE", p.OriginHost, proto, m.Port),
			fmt.Sprintf("iptables -A %s -d %s -p %s --dport %d -j RETURN", AccountingChain, p.OriginHost, proto, m.Port),
			fmt.Sprintf("iptables -A %s -s %s -p %s --sport %d -j RETURN", AccountingChain, p.OriginHost, proto, m.Port),
		)
	}

	cmds = append(cmds, fmt.Sprintf("iptables -A FORWARD -j %s", AccountingChain))
	return cmds
}

// teardownCommands mirrors setup in reverse, rewriting each command's
// append/create flag to its corresponding delete form and appending
// `|| true` so a missing rule never fails wg-quick down (spec §4.6).
func teardownCommands(setup []string) []string {
	teardown := make([]string, 0, len(setup))
	for i := len(setup) - 1; i >= 0; i-- {
		teardown = append(teardown, toTeardown(setup[i])+" || true")
	}
	return teardown
}

func toTeardown(cmd string) string {
	switch {
	case strings.HasPrefix(cmd, "iptables -A "):
		return "iptables -D " + strings.TrimPrefix(cmd, "iptables -A ")
	case strings.HasPrefix(cmd, "iptables -N "):
		return "iptables -X " + strings.TrimPrefix(cmd, "iptables -N ")
	case strings.HasPrefix(cmd, "iptables -t nat -A "):
		return "iptables -t nat -D " + strings.TrimPrefix(cmd, "iptables -t nat -A ")
	case strings.HasPrefix(cmd, "tc qdisc add "):
		return "tc qdisc del " + strings.TrimPrefix(cmd, "tc qdisc add ")
	case strings.HasPrefix(cmd, "tc class add "):
		return "tc class del " + strings.TrimPrefix(cmd, "tc class add ")
	case strings.HasPrefix(cmd, "tc filter add "):
		return "tc filter del " + strings.TrimPrefix(cmd, "tc filter add ")
	case strings.HasPrefix(cmd, "modprobe "):
		return "modprobe -r " + strings.TrimPrefix(cmd, "modprobe ")
	case strings.HasPrefix(cmd, "ip link set dev ifb0 up"):
		return "ip link set dev ifb0 down"
	default:
		return "true"
	}
}

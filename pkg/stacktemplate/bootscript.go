package stacktemplate

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/fossable/outpost/pkg/endpoint"
)

//go:embed bootscript.tmpl
var bootScriptSource string

var bootScriptTemplate = template.Must(template.New("bootscript").Parse(bootScriptSource))

// WaitHandlePlaceholder marks the spot in the rendered boot script where the
// CloudFormation wait-condition handle URL belongs. The script itself is a
// static Nix file with no CloudFormation intrinsic function syntax of its
// own, so BuildStack splices {"Ref":"WaitHandle"} in at this marker via
// Fn::Join once the text is rendered (spec §4.4, §6).
const WaitHandlePlaceholder = "@@OUTPOST_WAIT_HANDLE_URL@@"

// bootScriptView adds the precomputed, deduplicated per-protocol port lists
// the template needs; Nix forbids assigning the same attribute path twice
// in one set, so the per-mapping loop in the template itself cannot build
// these directly (spec §4.4).
type bootScriptView struct {
	Params
	UDPPorts string
	TCPPorts string
}

// RenderBootScript produces the NixOS declarative configuration the proxy
// instance boots into: the wg0 interface, the per-port DNAT/MASQUERADE/
// accounting rules, optional traffic shaping, the self-destruct watchdog,
// and the wait-condition success signal (spec §4.2, §4.6).
func RenderBootScript(p Params) (string, error) {
	view := bootScriptView{
		Params:   p,
		UDPPorts: portList(p, endpoint.UDP, "51820"),
		TCPPorts: portList(p, endpoint.TCP, ""),
	}

	var buf bytes.Buffer
	if err := bootScriptTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("rendering boot script: %w", err)
	}
	return buf.String(), nil
}

// portList collects the deduplicated ports of the given wire protocol from
// p.PortMappings into a single space-separated Nix list body, seeded with
// any always-open port (the WireGuard listen port for UDP).
func portList(p Params, proto endpoint.Protocol, seed string) string {
	var ports []string
	seen := map[uint16]bool{}
	if seed != "" {
		ports = append(ports, seed)
		if v, err := strconv.ParseUint(seed, 10, 16); err == nil {
			seen[uint16(v)] = true
		}
	}
	for _, m := range p.PortMappings {
		if m.Protocol != proto || seen[m.Port] {
			continue
		}
		seen[m.Port] = true
		ports = append(ports, strconv.Itoa(int(m.Port)))
	}
	return strings.Join(ports, " ")
}

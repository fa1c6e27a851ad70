package coordinator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fossable/outpost/pkg/errkind"
)

// DiscoverPublicIP calls an IP-echo HTTPS service to learn the origin's
// real internet-facing address, used to scope the proxy's security-group
// ingress rules (spec §4.8 step 4). A timeout here is fatal at this step
// (spec §5 "Timeouts").
func DiscoverPublicIP(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building IP-echo request: %v", errkind.ErrBadInput, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errkind.New(errkind.ErrNetworkTransient, "IP-echo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errkind.New(errkind.ErrNetworkTransient, fmt.Sprintf("IP-echo returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", errkind.New(errkind.ErrNetworkTransient, "reading IP-echo response", err)
	}
	return strings.TrimSpace(string(body)), nil
}

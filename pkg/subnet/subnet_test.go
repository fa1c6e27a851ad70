package subnet_test

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/pkg/errkind"
	"github.com/fossable/outpost/pkg/subnet"
)

func addrs(cidrs ...string) subnet.InterfaceAddrs {
	return func() ([]net.Addr, error) {
		out := make([]net.Addr, 0, len(cidrs))
		for _, c := range cidrs {
			a, err := subnet.ParsePrefix(c)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}
}

func TestPickFirstCandidateWhenClear(t *testing.T) {
	choice, err := subnet.Pick(addrs("192.168.1.5/24"))
	require.NoError(t, err)
	assert.Equal(t, "172.17", choice.Prefix)
	assert.Equal(t, "172.17.0.1", choice.ProxyIP)
	assert.Equal(t, "172.17.0.2", choice.OriginIP)
}

func TestPickSkipsCollision(t *testing.T) {
	choice, err := subnet.Pick(addrs("172.17.0.5/24"))
	require.NoError(t, err)
	assert.Equal(t, "172.18.0.1", choice.ProxyIP)
	assert.Equal(t, "172.18.0.2", choice.OriginIP)
}

func TestPickExhaustsCandidates(t *testing.T) {
	all := subnet.Candidates()
	cidrs := make([]string, len(all))
	for i, prefix := range all {
		if strings.Count(prefix, ".") == 2 {
			cidrs[i] = prefix + ".5/24"
		} else {
			cidrs[i] = prefix + ".5.5/24"
		}
	}
	_, err := subnet.Pick(addrs(cidrs...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNoSubnetAvailable))
}

func TestPickThreeOctetCandidateSuffixesWithoutExtraZero(t *testing.T) {
	usedPrefixes := make([]string, 0, len(subnet.Candidates())-1)
	for _, p := range subnet.Candidates() {
		if p != "192.168.99" {
			usedPrefixes = append(usedPrefixes, p)
		}
	}
	cidrs := make([]string, len(usedPrefixes))
	for i, p := range usedPrefixes {
		cidrs[i] = p + ".5.5/24"
	}

	choice, err := subnet.Pick(addrs(cidrs...))
	require.NoError(t, err)
	assert.Equal(t, "192.168.99", choice.Prefix)
	assert.Equal(t, "192.168.99.1", choice.ProxyIP)
	assert.Equal(t, "192.168.99.2", choice.OriginIP)
}

func TestPickThreeOctetCandidateCollisionDetected(t *testing.T) {
	// Occupy every two-octet candidate so 192.168.99 is the only one left,
	// then bind an address inside it: Pick must see that collision too.
	cidrs := []string{"192.168.99.5/24"}
	for _, p := range subnet.Candidates() {
		if p != "192.168.99" {
			cidrs = append(cidrs, p+".5.5/24")
		}
	}
	_, err := subnet.Pick(addrs(cidrs...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNoSubnetAvailable))
}

func TestSubnetDisjointnessProperty(t *testing.T) {
	usedPrefixes := []string{"172.17", "172.18", "10.99"}
	cidrs := make([]string, len(usedPrefixes))
	for i, p := range usedPrefixes {
		cidrs[i] = p + ".0.1/24"
	}
	choice, err := subnet.Pick(addrs(cidrs...))
	require.NoError(t, err)
	assert.NotContains(t, usedPrefixes, choice.Prefix)
}

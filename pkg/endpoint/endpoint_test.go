package endpoint_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/pkg/endpoint"
	"github.com/fossable/outpost/pkg/errkind"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		proto endpoint.Protocol
		host  string
		port  uint16
	}{
		{endpoint.TCP, "www.example.com", 80},
		{endpoint.UDP, "10.0.0.1", 51820},
		{endpoint.TLS, "a.example.com", 443},
	}
	for _, c := range cases {
		raw := string(c.proto) + "://" + c.host + ":" + itoa(c.port)
		ep, err := endpoint.Parse(raw, true)
		require.NoError(t, err)
		assert.Equal(t, c.proto, ep.Protocol)
		assert.Equal(t, c.host, ep.Host)
		port, err := ep.Port()
		require.NoError(t, err)
		assert.Equal(t, c.port, port)
	}
}

func TestParseRejectsUnknownScheme(t *testing.T) {
	_, err := endpoint.Parse("ftp://host:21", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrBadInput))
}

func TestParseRejectsMissingHost(t *testing.T) {
	_, err := endpoint.Parse("tcp://:80", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrBadInput))
}

func TestParseMissingPortOptional(t *testing.T) {
	ep, err := endpoint.Parse("tcp://origin-host", false)
	require.NoError(t, err)
	assert.False(t, ep.HasPort())
	_, err = ep.Port()
	assert.Error(t, err)
}

func TestParseMissingPortRequired(t *testing.T) {
	_, err := endpoint.Parse("tcp://origin-host", true)
	require.Error(t, err)
}

func TestValidateProtocols(t *testing.T) {
	www80, err := endpoint.Parse("tcp://www.example.com:80", true)
	require.NoError(t, err)
	www443, err := endpoint.Parse("tcp://www.example.com:443", true)
	require.NoError(t, err)
	origin, err := endpoint.Parse("tcp://www", false)
	require.NoError(t, err)

	require.NoError(t, endpoint.ValidateProtocols([]endpoint.Endpoint{www80, www443}, origin))

	mappings, err := endpoint.PortMappings([]endpoint.Endpoint{www80, www443})
	require.NoError(t, err)
	assert.Equal(t, []endpoint.PortMapping{
		{Port: 80, Protocol: endpoint.TCP},
		{Port: 443, Protocol: endpoint.TCP},
	}, mappings)
}

func TestValidateProtocolsMismatch(t *testing.T) {
	tcpEp, err := endpoint.Parse("tcp://a:80", true)
	require.NoError(t, err)
	udpEp, err := endpoint.Parse("udp://a:80", true)
	require.NoError(t, err)
	err = endpoint.ValidateProtocols([]endpoint.Endpoint{tcpEp}, udpEp)
	assert.Error(t, err)
}

func TestCrossEndpointTLSRequiresSingleIngress(t *testing.T) {
	tls1, _ := endpoint.Parse("tls://a.example.com:443", true)
	tls2, _ := endpoint.Parse("tls://b.example.com:443", true)
	origin, _ := endpoint.Parse("tls://a", false)

	err := endpoint.ValidateCrossEndpoint([]endpoint.Endpoint{tls1, tls2}, origin, endpoint.Options{})
	assert.Error(t, err)

	err = endpoint.ValidateCrossEndpoint([]endpoint.Endpoint{tls1}, origin, endpoint.Options{})
	assert.NoError(t, err)
}

func TestCrossEndpointCloudFrontRequiresSingleIngressAnd443(t *testing.T) {
	tls1, _ := endpoint.Parse("tls://a.example.com:443", true)
	origin, _ := endpoint.Parse("tls://a", false)
	err := endpoint.ValidateCrossEndpoint([]endpoint.Endpoint{tls1}, origin, endpoint.Options{UseCloudFront: true})
	assert.NoError(t, err)

	tcp80, _ := endpoint.Parse("tcp://a.example.com:80", true)
	origin2, _ := endpoint.Parse("tcp://a", false)
	err = endpoint.ValidateCrossEndpoint([]endpoint.Endpoint{tcp80}, origin2, endpoint.Options{UseCloudFront: true})
	assert.Error(t, err)
}

func TestCrossEndpointMultiIngressRejectsOriginPort(t *testing.T) {
	www80, _ := endpoint.Parse("tcp://www.example.com:80", true)
	www443, _ := endpoint.Parse("tcp://www.example.com:443", true)
	originWithPort, _ := endpoint.Parse("tcp://www:8080", true)
	err := endpoint.ValidateCrossEndpoint([]endpoint.Endpoint{www80, www443}, originWithPort, endpoint.Options{})
	assert.Error(t, err)
}

func itoa(p uint16) string {
	if p == 0 {
		return "0"
	}
	digits := []byte{}
	for p > 0 {
		digits = append([]byte{byte('0' + p%10)}, digits...)
		p /= 10
	}
	return string(digits)
}

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/internal/config"
	"github.com/fossable/outpost/pkg/errkind"
)

func baseFlags() config.AWSFlags {
	return config.AWSFlags{
		Ingress:      []string{"tcp://example.com:8080"},
		Origin:       "tcp://127.0.0.1:9090",
		Regions:      []string{"us-east-2"},
		InstanceType: "t4g.nano",
		HostedZoneID: "Z1",
	}
}

func TestValidateAcceptsWellFormedSingleIngress(t *testing.T) {
	d, err := baseFlags().Validate()
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", d.Region)
	assert.Len(t, d.PortMappings, 1)
	assert.EqualValues(t, 8080, d.PortMappings[0].Port)
}

func TestValidateRejectsMissingIngress(t *testing.T) {
	f := baseFlags()
	f.Ingress = nil
	_, err := f.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errkind.ErrBadInput)
}

func TestValidateUsesFirstRegionOnly(t *testing.T) {
	f := baseFlags()
	f.Regions = []string{"us-west-2", "eu-west-1"}
	d, err := f.Validate()
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", d.Region)
}

func TestValidateConvertsMbpsToKbit(t *testing.T) {
	f := baseFlags()
	f.UploadLimitMbps = 5
	d, err := f.Validate()
	require.NoError(t, err)
	require.NotNil(t, d.UploadLimitKbps)
	assert.EqualValues(t, 5000, *d.UploadLimitKbps)
}

func TestValidateRejectsOutOfRangeShapingLimit(t *testing.T) {
	f := baseFlags()
	f.DownloadLimitMbps = 20000
	_, err := f.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errkind.ErrBadInput)
}

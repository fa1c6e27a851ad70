package stacktemplate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/pkg/endpoint"
	"github.com/fossable/outpost/pkg/stacktemplate"
)

func baseParams() stacktemplate.Params {
	return stacktemplate.Params{
		StackName:       "example-com",
		Region:          "us-east-1",
		IngressHost:     "example.com",
		PortMappings:    []endpoint.PortMapping{{Port: 443, Protocol: endpoint.TCP}},
		OriginHost:      "origin.local",
		InstanceType:    "t4g.nano",
		HostedZoneID:    "Z111111QQQQQQ",
		OriginPublicIP:  "203.0.113.9",
		Subnet:          "172.17",
		ProxyTunnelIP:   "172.17.0.1",
		OriginTunnelIP:  "172.17.0.2",
		ProxyPrivateKey: "proxyPriv==",
		ProxyPublicKey:  "proxyPub==",
		OriginPublicKey: "originPub==",
		PresharedKey:    "psk==",
	}
}

func TestBuildStackDirectDNSWhenNoCloudFront(t *testing.T) {
	tpl, err := stacktemplate.BuildStack(baseParams())
	require.NoError(t, err)

	assert.Contains(t, tpl, `"AWS::EC2::VPC"`)
	assert.Contains(t, tpl, `"AWS::EC2::SecurityGroup"`)
	assert.Contains(t, tpl, `"AWS::IAM::Role"`)
	assert.Contains(t, tpl, `"AWS::CloudFormation::WaitCondition"`)
	assert.Contains(t, tpl, "203.0.113.9/32")
	assert.NotContains(t, tpl, "AWS::CloudFront::Distribution")
	assert.NotContains(t, tpl, `"AliasTarget"`, "direct mode should not alias-to-CDN")
}

func TestBuildStackCloudFrontAddsDistributionAndAlias(t *testing.T) {
	p := baseParams()
	p.UseCloudFront = true
	tpl, err := stacktemplate.BuildStack(p)
	require.NoError(t, err)

	assert.Contains(t, tpl, "AWS::CloudFront::Distribution")
	assert.Contains(t, tpl, "Z2FDTNDATAQYW2", "CloudFront's fixed hosted-zone ID must back the alias record")
}

func TestBuildStackDebugOpensSSHFromOriginOnly(t *testing.T) {
	p := baseParams()
	p.Debug = true
	tpl, err := stacktemplate.BuildStack(p)
	require.NoError(t, err)

	assert.Contains(t, tpl, `"FromPort": 22`)
	assert.Contains(t, tpl, "203.0.113.9/32")
}

func TestBuildStackOmitsSSHWhenNotDebug(t *testing.T) {
	tpl, err := stacktemplate.BuildStack(baseParams())
	require.NoError(t, err)
	assert.NotContains(t, tpl, `"FromPort": 22`)
}

func TestBuildStackSplicesWaitHandleRefIntoUserData(t *testing.T) {
	tpl, err := stacktemplate.BuildStack(baseParams())
	require.NoError(t, err)

	assert.Contains(t, tpl, `"Fn::Join"`)
	assert.Contains(t, tpl, `"Ref": "WaitHandle"`)
	assert.NotContains(t, tpl, stacktemplate.WaitHandlePlaceholder,
		"the placeholder must be fully consumed by the Fn::Join split")
}

func TestBuildStackDNSRecordNameHasTrailingDot(t *testing.T) {
	tpl, err := stacktemplate.BuildStack(baseParams())
	require.NoError(t, err)
	assert.Contains(t, tpl, `"Name": "example.com."`)
}

func TestBuildStackCloudFrontDNSRecordNameHasTrailingDot(t *testing.T) {
	p := baseParams()
	p.UseCloudFront = true
	tpl, err := stacktemplate.BuildStack(p)
	require.NoError(t, err)
	assert.Contains(t, tpl, `"Name": "example.com."`)
}

func TestRenderBootScriptIncludesTunnelAndWatchdog(t *testing.T) {
	script, err := stacktemplate.RenderBootScript(baseParams())
	require.NoError(t, err)

	assert.Contains(t, script, "networking.wireguard.interfaces.wg0")
	assert.Contains(t, script, "proxyPriv==")
	assert.Contains(t, script, "originPub==")
	assert.Contains(t, script, "listenPort = 51820")
	assert.Contains(t, script, "outpost-watchdog")
	assert.Contains(t, script, "failures=$((failures+1))")
	assert.NotContains(t, script, "outpost-shape-up", "no shaping configured should not emit shaping unit")
}

func TestRenderBootScriptShapingUnitsWhenLimitsSet(t *testing.T) {
	p := baseParams()
	up := uint(500)
	down := uint(2000)
	p.UploadLimitKbps = &up
	p.DownloadLimitKbps = &down

	script, err := stacktemplate.RenderBootScript(p)
	require.NoError(t, err)

	assert.Contains(t, script, "outpost-shape-up")
	assert.Contains(t, script, "500kbit")
	assert.Contains(t, script, "outpost-shape-down")
	assert.Contains(t, script, "2000kbit")
}

func TestRenderBootScriptDebugEnablesSSHService(t *testing.T) {
	p := baseParams()
	p.Debug = true
	script, err := stacktemplate.RenderBootScript(p)
	require.NoError(t, err)
	assert.Contains(t, script, "services.openssh.enable = mkIf true true")
}

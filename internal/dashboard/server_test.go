package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/internal/dashboard"
	"github.com/fossable/outpost/pkg/stats"
)

func TestStatsEndpointReturnsCurrentSnapshotWithoutSampler(t *testing.T) {
	state := dashboard.NewAppState()
	state.SetStats(stats.TunnelStats{BytesSent: 10, BytesReceived: 20, PacketsSent: 1, PacketsReceived: 2})
	state.SetProxyInfo(dashboard.ProxyInfo{PublicIP: "198.51.100.4", StackName: "example-com"})

	srv := dashboard.NewServer(state, dashboard.NotImplementedRenderer{})
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 10, body["bytes_sent"])
	assert.EqualValues(t, 20, body["bytes_received"])
	assert.EqualValues(t, 1, body["packets_sent"])
	assert.EqualValues(t, 2, body["packets_received"])
	assert.Equal(t, "10 B", body["bytes_sent_formatted"])
	assert.Equal(t, "20 B", body["bytes_received_formatted"])
	assert.Equal(t, "198.51.100.4", body["proxy"].(map[string]interface{})["public_ip"])
}

func TestIndexAndAssetsFallBackTo501WithoutRenderer(t *testing.T) {
	state := dashboard.NewAppState()
	srv := dashboard.NewServer(state, dashboard.NotImplementedRenderer{})

	for _, path := range []string{"/", "/assets/app.js"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}

// Package dashboard holds the live operator-facing view of a running
// outpost: current throughput, proxy info, and the accounting-chain sampler
// used for on-demand sampling once the tunnel is up. HTML rendering is an injected collaborator the
// core never implements (spec §1 "out of scope").
package dashboard

import (
	"sync"
	"time"

	"github.com/fossable/outpost/pkg/stats"
)

// ProxyInfo is the subset of the deployed stack worth surfacing to an
// operator.
type ProxyInfo struct {
	PublicIP   string
	InstanceID string
	LaunchTime time.Time
	StackName  string
	Region     string
}

// AppState exposes three independently-guarded mutable slots under
// reader-writer discipline, with no cross-slot invariants (spec §5).
type AppState struct {
	statsMu sync.RWMutex
	stats   stats.TunnelStats

	proxyMu sync.RWMutex
	proxy   ProxyInfo
	hasProxy bool

	samplerMu sync.RWMutex
	sampler   *stats.Sampler
}

func NewAppState() *AppState {
	return &AppState{}
}

func (s *AppState) SetStats(v stats.TunnelStats) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats = v
}

func (s *AppState) Stats() stats.TunnelStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

func (s *AppState) SetProxyInfo(p ProxyInfo) {
	s.proxyMu.Lock()
	defer s.proxyMu.Unlock()
	s.proxy = p
	s.hasProxy = true
}

func (s *AppState) ProxyInfo() (ProxyInfo, bool) {
	s.proxyMu.RLock()
	defer s.proxyMu.RUnlock()
	return s.proxy, s.hasProxy
}

// SetSampler hands the dashboard a sampler once the tunnel is up; before
// that, Refresh is a no-op (spec §5 "Stats sampling is invoked on demand
// from dashboard handlers — there is no background scraper").
func (s *AppState) SetSampler(sampler *stats.Sampler) {
	s.samplerMu.Lock()
	defer s.samplerMu.Unlock()
	s.sampler = sampler
}

// Refresh samples the accounting chain on demand and stores the result,
// returning it. Called from the /api/stats handler, never from a
// background goroutine.
func (s *AppState) Refresh() (stats.TunnelStats, error) {
	s.samplerMu.RLock()
	sampler := s.sampler
	s.samplerMu.RUnlock()

	if sampler == nil {
		return s.Stats(), nil
	}
	v, err := sampler.Sample()
	if err != nil {
		return stats.TunnelStats{}, err
	}
	s.SetStats(v)
	return v, nil
}

// Package stats samples the accounting chain the tunnel installer wires
// into FORWARD and turns its byte counters into the dashboard's view of
// tunnel throughput (spec §4.7, C7).
package stats

import (
	"strconv"

	"github.com/coreos/go-iptables/iptables"

	"github.com/fossable/outpost/pkg/tunnel"
)

// TunnelStats is the dashboard-facing throughput snapshot.
type TunnelStats struct {
	BytesSent       uint64 // to-origin: proxy-perspective download, origin-perspective upload
	BytesReceived   uint64 // from-origin
	PacketsSent     uint64
	PacketsReceived uint64
}

// Sampler reads the live accounting chain via go-iptables.
type Sampler struct {
	ipt *iptables.IPTables
}

func NewSampler() (*Sampler, error) {
	ipt, err := iptables.New()
	if err != nil {
		return nil, err
	}
	return &Sampler{ipt: ipt}, nil
}

// Sample reads OUTPOST_ACCOUNTING with verbose, numeric, exact counters and
// parses it into a TunnelStats.
func (s *Sampler) Sample() (TunnelStats, error) {
	rows, err := s.ipt.Stats("filter", tunnel.AccountingChain)
	if err != nil {
		return TunnelStats{}, err
	}
	return ParseRows(rows), nil
}

// ParseRows is the pure half of Sample, split out for testability: no
// iptables binary required. Each row is the field list go-iptables'
// Stats() returns per accounting-chain line: pkts, bytes, target, prot,
// opt, in, out, src, dst[, extra...] (spec §4.7).
func ParseRows(rows [][]string) TunnelStats {
	var out TunnelStats
	for _, row := range rows {
		if len(row) < 9 {
			continue
		}
		pkts, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			continue
		}
		bytes, err := strconv.ParseUint(row[1], 10, 64)
		if err != nil {
			continue
		}
		src, dst := row[7], row[8]

		switch {
		case src == "0.0.0.0/0" && dst != "0.0.0.0/0":
			out.BytesSent += bytes
			out.PacketsSent += pkts
		case dst == "0.0.0.0/0" && src != "0.0.0.0/0":
			out.BytesReceived += bytes
			out.PacketsReceived += pkts
		}
	}
	return out
}

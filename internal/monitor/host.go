package monitor

import (
	"context"

	"github.com/rileyhilliard/vmwatch/internal/cache"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor/parsers"
)

// hostCommand is one step of a host metrics fetch. Steps run in table
// order over a single session.
type hostCommand struct {
	name  string
	cmd   string
	apply func(out string, s *metrics.HostSnapshot)
}

var hostCommands = []hostCommand{
	{
		name: "cpu",
		cmd:  "top -bn1 | grep '%Cpu'",
		apply: func(out string, s *metrics.HostSnapshot) {
			s.CPUPercent = parsers.ParseCPU(out)
		},
	},
	{
		name: "ram",
		cmd:  "free -m",
		apply: func(out string, s *metrics.HostSnapshot) {
			s.RAM, _ = parsers.ParseRAM(out)
		},
	},
	{
		name: "disk",
		cmd:  "df -h /",
		apply: func(out string, s *metrics.HostSnapshot) {
			s.Disk, _ = parsers.ParseDisk(out)
		},
	},
	{
		name: "uptime",
		cmd:  "uptime",
		apply: func(out string, s *metrics.HostSnapshot) {
			s.Uptime = parsers.ParseUptime(out)
		},
	},
}

// HostMetrics returns the host's CPU, RAM, disk and uptime, from the cache
// when fresh. Failures are returned but not cached.
func (m *Monitor) HostMetrics(ctx context.Context, label string) metrics.HostResult {
	return m.cache.GetOrFetch(ctx, label, m.hostFetcher(label))
}

// RefreshHostMetrics drops any cached snapshot for label and fetches anew.
func (m *Monitor) RefreshHostMetrics(ctx context.Context, label string) metrics.HostResult {
	m.cache.Invalidate(label)
	return m.HostMetrics(ctx, label)
}

func (m *Monitor) hostFetcher(label string) cache.FetchFunc {
	return func(ctx context.Context) metrics.HostResult {
		m.log.Debug("fetching metrics for %s", label)

		call, fail := m.open(ctx, label)
		if fail != nil {
			if fail.notFound {
				r := metrics.NotFound(label)
				if fail.code != r.Code {
					r.Reason = fail.reason
				}
				return r
			}
			return metrics.ConnectionFailed(label, fail.reason, fail.code)
		}
		defer call.session.Close()

		snap := &metrics.HostSnapshot{Label: label, Address: call.cred.Address}
		for _, hc := range hostCommands {
			out, ok := call.session.Run(ctx, hc.cmd)
			if fail := call.transportFailure(); fail != nil {
				m.log.Warn("metrics fetch for %s aborted at %s: %s", label, hc.name, fail.reason)
				return metrics.ConnectionFailed(label, fail.reason, fail.code)
			}
			if !ok {
				m.log.Debug("%s command on %s returned nothing", hc.name, label)
			}
			hc.apply(out, snap)
		}
		snap.FetchedAt = m.now()

		return metrics.Connected(snap)
	}
}

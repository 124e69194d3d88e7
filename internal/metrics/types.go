// Package metrics holds the value types shared by the parsers, the telemetry
// cache, the fleet monitor and the alert engine.
package metrics

import (
	"strings"
	"time"
)

// RAM contains memory usage as reported by `free -m`.
type RAM struct {
	TotalMB      int64   `json:"total_mb"`
	UsedMB       int64   `json:"used_mb"`
	FreeMB       int64   `json:"free_mb"`
	UsagePercent float64 `json:"usage_percent"`
}

// Disk contains root filesystem usage as reported by `df -h /`.
// Values keep their unit suffixes; UsePercent keeps its trailing "%".
type Disk struct {
	Size       string `json:"size"`
	Used       string `json:"used"`
	Avail      string `json:"avail"`
	UsePercent string `json:"use_percent"`
}

// BlockIO is a container's cumulative block I/O converted to megabytes.
type BlockIO struct {
	ReadMB  float64 `json:"read_mb"`
	WriteMB float64 `json:"write_mb"`
	TotalMB float64 `json:"total_mb"`
}

// HostSnapshot is one fetch of a host's metrics. It is never mutated after
// construction; a later fetch replaces it.
type HostSnapshot struct {
	Label      string    `json:"vm"`
	Address    string    `json:"ip"`
	CPUPercent float64   `json:"cpu"`
	RAM        RAM       `json:"ram"`
	Disk       Disk      `json:"disk"`
	Uptime     string    `json:"uptime"`
	FetchedAt  time.Time `json:"timestamp"`
}

// HostStatus discriminates a HostResult.
type HostStatus string

const (
	HostConnected        HostStatus = "connected"
	HostConnectionFailed HostStatus = "connection_failed"
	HostNotFound         HostStatus = "not_found"
)

// HostResult is the outcome of a host metrics query. Snapshot is set only
// when Status is HostConnected; Reason and Code only on failure.
type HostResult struct {
	Label    string        `json:"vm"`
	Status   HostStatus    `json:"status"`
	Snapshot *HostSnapshot `json:"snapshot,omitempty"`
	Reason   string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`
}

// Connected wraps a fresh snapshot.
func Connected(s *HostSnapshot) HostResult {
	return HostResult{Label: s.Label, Status: HostConnected, Snapshot: s}
}

// NotFound is the result for a label the registry does not know.
func NotFound(label string) HostResult {
	return HostResult{Label: label, Status: HostNotFound, Reason: "VM not found", Code: "NOT_FOUND"}
}

// ConnectionFailed is the result for a dial, auth or timeout failure.
func ConnectionFailed(label, reason, code string) HostResult {
	return HostResult{Label: label, Status: HostConnectionFailed, Reason: reason, Code: code}
}

// Container is one object decoded from `docker ps` or `docker images`
// NDJSON output. All docker fields are preserved as decoded.
type Container map[string]any

func (c Container) str(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Name returns the primary container name. Docker reports a comma separated
// list in Names when a container has several.
func (c Container) Name() string {
	names := c.str("Names")
	if i := strings.IndexByte(names, ','); i >= 0 {
		names = names[:i]
	}
	return strings.TrimSpace(names)
}

func (c Container) Image() string     { return c.str("Image") }
func (c Container) State() string     { return c.str("State") }
func (c Container) CreatedAt() string { return c.str("CreatedAt") }
func (c Container) Ports() string     { return c.str("Ports") }

// ContainerStats is one row of `docker stats --no-stream`. Values are kept
// as docker prints them ("12.5%", "1.5MiB / 2GiB").
type ContainerStats struct {
	Container     string `json:"container"`
	CPUPercent    string `json:"cpu_percent"`
	MemoryUsage   string `json:"memory_usage"`
	MemoryPercent string `json:"memory_percent"`
	NetworkIO     string `json:"network_io"`
	BlockIO       string `json:"block_io"`
}

// StatsStatus discriminates a ContainerStatsResult.
type StatsStatus string

const (
	StatsOK         StatsStatus = "ok"
	StatsNotFound   StatsStatus = "not_found"
	StatsParseError StatsStatus = "parse_error"
	StatsFailed     StatsStatus = "failed"
)

// ContainerStatsResult is the outcome of a single container stats query.
type ContainerStatsResult struct {
	Label     string          `json:"vm"`
	Container string          `json:"container"`
	Status    StatsStatus     `json:"status"`
	Stats     *ContainerStats `json:"stats,omitempty"`
	RawOutput string          `json:"raw_output,omitempty"`
	Reason    string          `json:"message,omitempty"`
	FetchedAt time.Time       `json:"timestamp"`
}

package alerts

import (
	"fmt"
	"strconv"

	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor/parsers"
)

// num prints a float the short way: 55, 55.5.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (e *Engine) record(label, container string, typ Type, threshold float64, unit string) Record {
	return Record{
		Label:       label,
		Container:   container,
		Type:        typ,
		Threshold:   threshold,
		Unit:        unit,
		EvaluatedAt: e.now(),
	}
}

// compare fills status and message for a measured value. Only alerts keep
// the source payload.
func compare(r Record, current float64, name string, source any) Record {
	r.CurrentValue = current
	value := num(current) + r.Unit
	if r.Unit == UnitMB {
		value = fmt.Sprintf("%.2f%s", current, r.Unit)
	}
	limit := num(r.Threshold) + r.Unit

	if current > r.Threshold {
		r.Status = StatusAlert
		r.Message = fmt.Sprintf("%s alert: %s > %s", name, value, limit)
		r.Source = source
		return r
	}
	r.Status = StatusOK
	r.Message = fmt.Sprintf("%s OK: %s <= %s", name, value, limit)
	return r
}

func evalHostRAM(r Record, res metrics.HostResult) Record {
	if res.Status != metrics.HostConnected || res.Snapshot == nil {
		return vmError(r, res)
	}
	ram := res.Snapshot.RAM
	if ram.UsagePercent == 0 {
		r.Status = StatusNoData
		r.Message = "RAM data unavailable"
		return r
	}
	return compare(r, ram.UsagePercent, "RAM", ram)
}

func evalHostDisk(r Record, res metrics.HostResult) Record {
	if res.Status != metrics.HostConnected || res.Snapshot == nil {
		return vmError(r, res)
	}
	disk := res.Snapshot.Disk
	if disk.UsePercent == "" {
		r.Status = StatusNoData
		r.Message = "Disk data unavailable"
		return r
	}
	usage, err := parsers.ParsePercent(disk.UsePercent)
	if err != nil {
		r.Status = StatusError
		r.Message = fmt.Sprintf("unreadable disk usage %q", disk.UsePercent)
		return r
	}
	if usage == 0 {
		r.Status = StatusNoData
		r.Message = "Disk data unavailable"
		return r
	}
	return compare(r, usage, "Disk", disk)
}

func vmError(r Record, res metrics.HostResult) Record {
	r.Status = StatusVMError
	r.Message = "VM not reachable"
	if res.Reason != "" {
		r.Message += ": " + res.Reason
	}
	return r
}

func containerError(r Record, res metrics.ContainerStatsResult) Record {
	r.Status = StatusContainerError
	reason := res.Reason
	if reason == "" {
		reason = "unknown error"
	}
	r.Message = "Container not reachable: " + reason
	return r
}

// evalContainerPercent checks a percentage column of a container's stats.
func evalContainerPercent(r Record, res metrics.ContainerStatsResult, name string, field func(metrics.ContainerStats) string) Record {
	if res.Status != metrics.StatsOK || res.Stats == nil {
		return containerError(r, res)
	}
	raw := field(*res.Stats)
	if raw == "" {
		r.Status = StatusNoData
		r.Message = fmt.Sprintf("%s data unavailable for container %s", name, r.Container)
		return r
	}
	v, err := parsers.ParsePercent(raw)
	if err != nil {
		r.Status = StatusError
		r.Message = fmt.Sprintf("unreadable %s value %q for container %s", name, raw, r.Container)
		return r
	}
	if v == 0 {
		r.Status = StatusNoData
		r.Message = fmt.Sprintf("%s data unavailable for container %s", name, r.Container)
		return r
	}
	return compare(r, v, fmt.Sprintf("Container %s %s", r.Container, name), *res.Stats)
}

func evalContainerCPU(r Record, res metrics.ContainerStatsResult) Record {
	return evalContainerPercent(r, res, "CPU", func(s metrics.ContainerStats) string { return s.CPUPercent })
}

func evalContainerRAM(r Record, res metrics.ContainerStatsResult) Record {
	return evalContainerPercent(r, res, "RAM", func(s metrics.ContainerStats) string { return s.MemoryPercent })
}

func evalContainerBlockIO(r Record, res metrics.ContainerStatsResult) Record {
	if res.Status != metrics.StatsOK || res.Stats == nil {
		return containerError(r, res)
	}
	io, ok := parsers.ParseBlockIO(res.Stats.BlockIO)
	if !ok {
		r.Status = StatusNoData
		r.Message = fmt.Sprintf("Block I/O unavailable for container %s", r.Container)
		return r
	}
	return compare(r, io.TotalMB, fmt.Sprintf("Container %s disk", r.Container), *res.Stats)
}

package parsers

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
)

// StatsFieldCount is the number of fields in one pipe-delimited
// `docker stats` line: container, cpu%, mem usage, mem%, net I/O, block I/O.
const StatsFieldCount = 6

// StatsLineFormat is the docker --format template ParseContainerStatsLine expects.
const StatsLineFormat = "{{.Container}}|{{.CPUPerc}}|{{.MemUsage}}|{{.MemPerc}}|{{.NetIO}}|{{.BlockIO}}"

// StatsTableFormat is the docker --format template ParseStatsTable expects.
const StatsTableFormat = `table {{.Container}}\t{{.CPUPerc}}\t{{.MemUsage}}\t{{.MemPerc}}\t{{.NetIO}}\t{{.BlockIO}}`

var sizeRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([A-Za-z]*)$`)

// Multipliers to MB. Only byte, kilo and mega suffixes count; the binary
// spellings (KiB, MiB) are read as their decimal counterparts. Anything
// larger, GB included, converts to 0.
var sizeUnitsMB = map[string]float64{
	"B":   1.0 / (1024 * 1024),
	"KB":  1.0 / 1024,
	"KIB": 1.0 / 1024,
	"MB":  1,
	"MIB": 1,
}

// ParseSizeToMB converts a docker size string ("512KB", "1.5MB", "0B") to
// megabytes. Unknown or missing units yield 0.
func ParseSizeToMB(s string) float64 {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	mult, ok := sizeUnitsMB[strings.ToUpper(m[2])]
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v * mult
}

// ParseBlockIO parses a docker BlockIO column ("1.50MB / 512KB") into read,
// write and combined megabytes. The bool is false when the value has no
// single "/" separator.
func ParseBlockIO(text string) (metrics.BlockIO, bool) {
	parts := strings.Split(text, "/")
	if len(parts) != 2 {
		return metrics.BlockIO{}, false
	}
	read := ParseSizeToMB(parts[0])
	write := ParseSizeToMB(parts[1])
	return metrics.BlockIO{ReadMB: read, WriteMB: write, TotalMB: read + write}, true
}

// ParseJSONLines decodes newline-delimited JSON as produced by
// `docker ps --format '{{json .}}'`. Malformed lines are skipped and logged.
func ParseJSONLines(text string, log logger.Logger) []metrics.Container {
	log = logger.OrDefault(log)
	out := make([]metrics.Container, 0)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var c metrics.Container
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			log.Warn("skipping malformed JSON line: %v - line: %s", err, line)
			continue
		}
		if c == nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseContainerStatsLine splits one pipe-delimited stats line. The returned
// field count lets callers tell a missing container (0) from a shape
// mismatch (anything other than StatsFieldCount); stats are only filled on
// an exact match.
func ParseContainerStatsLine(text string) (metrics.ContainerStats, int) {
	text = strings.TrimSpace(text)
	if text == "" || !strings.Contains(text, "|") {
		return metrics.ContainerStats{}, 0
	}

	parts := strings.Split(text, "|")
	if len(parts) != StatsFieldCount {
		return metrics.ContainerStats{}, len(parts)
	}
	return statsFromFields(parts), StatsFieldCount
}

// ParseStatsTable parses tab-delimited `docker stats` table output. The
// header row is skipped; rows with fewer than six columns are ignored.
func ParseStatsTable(text string) []metrics.ContainerStats {
	out := make([]metrics.ContainerStats, 0)
	for _, line := range nonEmptyLines(text) {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "CONTAINER") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < StatsFieldCount {
			continue
		}
		out = append(out, statsFromFields(parts))
	}
	return out
}

// ParseNames returns one name per non-empty line, as printed by
// `docker ps --format '{{.Names}}'`.
func ParseNames(text string) []string {
	var names []string
	for _, line := range nonEmptyLines(text) {
		names = append(names, strings.TrimSpace(line))
	}
	return names
}

func statsFromFields(parts []string) metrics.ContainerStats {
	return metrics.ContainerStats{
		Container:     strings.TrimSpace(parts[0]),
		CPUPercent:    strings.TrimSpace(parts[1]),
		MemoryUsage:   strings.TrimSpace(parts[2]),
		MemoryPercent: strings.TrimSpace(parts[3]),
		NetworkIO:     strings.TrimSpace(parts[4]),
		BlockIO:       strings.TrimSpace(parts[5]),
	}
}

// Package parsers converts the text output of remote introspection commands
// into typed metrics. Every parser tolerates malformed input and returns a
// zero value instead of failing.
package parsers

import (
	"bufio"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/vmwatch/internal/metrics"
)

var cpuUserRe = regexp.MustCompile(`(\d+\.\d+)\s*us`)

// ParseCPU extracts the user CPU percentage from a `top -bn1` summary line
// such as "%Cpu(s):  3.1 us,  1.0 sy, ...". Returns 0 if absent.
func ParseCPU(text string) float64 {
	m := cpuUserRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseRAM parses `free -m` output. The first line starting with "mem"
// (any case) supplies total, used and free in MB. The bool is false when no
// usable line was found.
func ParseRAM(text string) (metrics.RAM, bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "mem") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return metrics.RAM{}, false
		}

		total, err1 := strconv.ParseInt(fields[1], 10, 64)
		used, err2 := strconv.ParseInt(fields[2], 10, 64)
		free, err3 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return metrics.RAM{}, false
		}

		ram := metrics.RAM{TotalMB: total, UsedMB: used, FreeMB: free}
		if total > 0 {
			ram.UsagePercent = round2(float64(used) / float64(total) * 100)
		}
		return ram, true
	}
	return metrics.RAM{}, false
}

// ParseDisk parses `df -h /` output: a header line followed by one data row
// whose fields 2 to 5 are size, used, avail and use%. A filesystem name too
// long for its column wraps the row onto the next line; that is rejoined.
func ParseDisk(text string) (metrics.Disk, bool) {
	lines := nonEmptyLines(text)
	if len(lines) < 2 {
		return metrics.Disk{}, false
	}

	fields := strings.Fields(lines[1])
	if len(fields) == 1 && len(lines) > 2 {
		fields = append(fields, strings.Fields(lines[2])...)
	}
	if len(fields) < 5 {
		return metrics.Disk{}, false
	}

	return metrics.Disk{
		Size:       fields[1],
		Used:       fields[2],
		Avail:      fields[3],
		UsePercent: fields[4],
	}, true
}

// ParseUptime returns the raw `uptime` line trimmed of surrounding space.
func ParseUptime(text string) string {
	return strings.TrimSpace(text)
}

// ParsePercent parses docker and df style percentages ("12.5%", "80%").
func ParsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Package alerts evaluates threshold rules against host and container
// metrics. Every evaluation yields a Record; the engine never fails.
package alerts

import (
	"time"
)

// Type names the metric a rule checks.
type Type string

const (
	TypeRAM           Type = "ram"
	TypeDisk          Type = "disk"
	TypeContainerCPU  Type = "container_cpu"
	TypeContainerRAM  Type = "container_ram"
	TypeContainerDisk Type = "container_disk"
)

// Status is the outcome of one rule.
type Status string

const (
	StatusOK             Status = "ok"
	StatusAlert          Status = "alert"
	StatusNoData         Status = "no_data"
	StatusVMError        Status = "vm_error"
	StatusContainerError Status = "container_error"
	StatusError          Status = "error"
)

// Units for CurrentValue and Threshold.
const (
	UnitPercent = "%"
	UnitMB      = "MB"
)

// Record is the result of evaluating one rule. Source carries the raw
// metrics payload and is only set on alerts.
type Record struct {
	Label        string    `json:"vm"`
	Container    string    `json:"container,omitempty"`
	Type         Type      `json:"alert_type"`
	Status       Status    `json:"status"`
	CurrentValue float64   `json:"current_value"`
	Threshold    float64   `json:"threshold"`
	Unit         string    `json:"unit,omitempty"`
	Message      string    `json:"message"`
	Source       any       `json:"source,omitempty"`
	EvaluatedAt  time.Time `json:"timestamp"`
}

// Alerting returns the records whose status is alert, in order.
func Alerting(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Status == StatusAlert {
			out = append(out, r)
		}
	}
	return out
}

// CountByStatus tallies records per status.
func CountByStatus(records []Record) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range records {
		counts[r.Status]++
	}
	return counts
}

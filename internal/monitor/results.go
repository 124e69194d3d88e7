package monitor

import (
	"time"

	"github.com/rileyhilliard/vmwatch/internal/metrics"
)

// Status is the discriminator shared by the docker, action and connection
// results.
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
	StatusStarted  Status = "started"
	StatusStopped  Status = "stopped"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// DockerListResult is the outcome of a docker listing.
type DockerListResult struct {
	Label     string              `json:"vm"`
	Kind      DockerKind          `json:"type"`
	Status    Status              `json:"status"`
	Items     []metrics.Container `json:"data,omitempty"`
	Count     int                 `json:"count"`
	Reason    string              `json:"error,omitempty"`
	Code      string              `json:"code,omitempty"`
	FetchedAt time.Time           `json:"timestamp"`
}

// AllStatsResult holds stats for every running container on a host.
type AllStatsResult struct {
	Label     string                   `json:"vm"`
	Status    Status                   `json:"status"`
	Stats     []metrics.ContainerStats `json:"containers_stats"`
	Message   string                   `json:"message,omitempty"`
	Reason    string                   `json:"error,omitempty"`
	Code      string                   `json:"code,omitempty"`
	FetchedAt time.Time                `json:"timestamp"`
}

// ResourcesResult holds the raw JSON stats objects of running containers.
type ResourcesResult struct {
	Label     string              `json:"vm"`
	Status    Status              `json:"status"`
	Resources []metrics.Container `json:"container_resources"`
	Count     int                 `json:"count"`
	Reason    string              `json:"error,omitempty"`
	Code      string              `json:"code,omitempty"`
	FetchedAt time.Time           `json:"timestamp"`
}

// ActionResult is the outcome of a container lifecycle command.
type ActionResult struct {
	Label     string `json:"vm"`
	Container string `json:"container"`
	Status    Status `json:"status"`
	Output    string `json:"message,omitempty"`
	Reason    string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// LogsResult carries a container's log tail as docker printed it.
type LogsResult struct {
	Label     string `json:"vm"`
	Container string `json:"container"`
	Status    Status `json:"status"`
	Logs      string `json:"logs"`
	Reason    string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// ConnectionResult is the outcome of a reachability check. Status is
// StatusSuccess or StatusError, or StatusNotFound for an unknown label.
type ConnectionResult struct {
	Label   string        `json:"vm,omitempty"`
	Status  Status        `json:"status"`
	Message string        `json:"message"`
	Code    string        `json:"code,omitempty"`
	Latency time.Duration `json:"latency_ns,omitempty"`
}

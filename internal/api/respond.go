package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
)

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Status: "error", Code: code, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// queryFloat reads an optional numeric query parameter.
func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(errors.ErrConfig, key+" must be a number", "")
	}
	return v, nil
}

// thresholdsFrom overrides base with any limits present in the query.
func thresholdsFrom(r *http.Request, base alerts.Thresholds) (alerts.Thresholds, error) {
	fields := []struct {
		key string
		dst *float64
	}{
		{"ram", &base.HostRAM},
		{"disk", &base.HostDisk},
		{"container_cpu", &base.ContainerCPU},
		{"container_ram", &base.ContainerRAM},
		{"container_block_io_mb", &base.ContainerBlockIOMB},
	}
	for _, f := range fields {
		v, err := queryFloat(r, f.key, *f.dst)
		if err != nil {
			return base, err
		}
		*f.dst = v
	}
	return base, nil
}

func hostStatusCode(s metrics.HostStatus) int {
	switch s {
	case metrics.HostConnected:
		return http.StatusOK
	case metrics.HostNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func statsStatusCode(s metrics.StatsStatus) int {
	switch s {
	case metrics.StatsOK:
		return http.StatusOK
	case metrics.StatsNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func monitorStatusCode(s monitor.Status) int {
	switch s {
	case monitor.StatusOK, monitor.StatusStarted, monitor.StatusStopped, monitor.StatusSuccess:
		return http.StatusOK
	case monitor.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func recordStatusCode(s alerts.Status) int {
	switch s {
	case alerts.StatusOK, alerts.StatusAlert, alerts.StatusNoData:
		return http.StatusOK
	case alerts.StatusVMError, alerts.StatusContainerError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/errors"
)

func (s *Server) hostRAMAlert(w http.ResponseWriter, r *http.Request) {
	th, err := queryFloat(r, "threshold", s.thresholds.HostRAM)
	if err != nil {
		badRequest(w, errors.Reason(err))
		return
	}
	rec := s.engine.CheckHostRAM(r.Context(), chi.URLParam(r, "label"), th)
	writeJSON(w, recordStatusCode(rec.Status), rec)
}

func (s *Server) hostDiskAlert(w http.ResponseWriter, r *http.Request) {
	th, err := queryFloat(r, "threshold", s.thresholds.HostDisk)
	if err != nil {
		badRequest(w, errors.Reason(err))
		return
	}
	rec := s.engine.CheckHostDisk(r.Context(), chi.URLParam(r, "label"), th)
	writeJSON(w, recordStatusCode(rec.Status), rec)
}

func (s *Server) containerAlert(w http.ResponseWriter, r *http.Request) {
	label, name := chi.URLParam(r, "label"), chi.URLParam(r, "name")

	var (
		fallback float64
		check    func(th float64) alerts.Record
	)
	switch chi.URLParam(r, "metric") {
	case "cpu":
		fallback = s.thresholds.ContainerCPU
		check = func(th float64) alerts.Record { return s.engine.CheckContainerCPU(r.Context(), label, name, th) }
	case "ram":
		fallback = s.thresholds.ContainerRAM
		check = func(th float64) alerts.Record { return s.engine.CheckContainerRAM(r.Context(), label, name, th) }
	case "disk":
		fallback = s.thresholds.ContainerBlockIOMB
		check = func(th float64) alerts.Record { return s.engine.CheckContainerBlockIO(r.Context(), label, name, th) }
	default:
		badRequest(w, "metric must be cpu, ram or disk")
		return
	}

	th, err := queryFloat(r, "threshold", fallback)
	if err != nil {
		badRequest(w, errors.Reason(err))
		return
	}
	rec := check(th)
	writeJSON(w, recordStatusCode(rec.Status), rec)
}

type fleetResponse struct {
	alerts.FleetReport
	Counts   map[alerts.Status]int `json:"counts"`
	Alerting int                   `json:"alerting"`
}

func (s *Server) fleetAlerts(w http.ResponseWriter, r *http.Request) {
	th, err := thresholdsFrom(r, s.thresholds)
	if err != nil {
		badRequest(w, errors.Reason(err))
		return
	}
	report := s.engine.EvaluateFleet(r.Context(), th)
	status := http.StatusOK
	if report.Error != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, fleetResponse{
		FleetReport: report,
		Counts:      alerts.CountByStatus(report.Records),
		Alerting:    len(alerts.Alerting(report.Records)),
	})
}

type sendResponse struct {
	Status string          `json:"status"`
	RunID  string          `json:"run_id"`
	Count  int             `json:"count"`
	Alerts []alerts.Record `json:"alerts"`
}

// sendAlerts evaluates the fleet and hands any alerts to the sink.
func (s *Server) sendAlerts(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, errors.ErrNotify, "notifications are not configured")
		return
	}
	th, err := thresholdsFrom(r, s.thresholds)
	if err != nil {
		badRequest(w, errors.Reason(err))
		return
	}

	report := s.engine.EvaluateFleet(r.Context(), th)
	if report.Error != "" {
		writeError(w, http.StatusInternalServerError, errors.ErrRegistry, report.Error)
		return
	}
	firing := alerts.Alerting(report.Records)
	if len(firing) == 0 {
		writeJSON(w, http.StatusOK, sendResponse{Status: "no_alerts", RunID: report.RunID, Alerts: firing})
		return
	}

	if err := s.sink.Send(r.Context(), firing); err != nil {
		s.log.Error("run %s: sending %d alerts failed: %s", report.RunID, len(firing), errors.Reason(err))
		writeError(w, http.StatusBadGateway, errors.ErrNotify, errors.Reason(err))
		return
	}
	s.log.Info("run %s: sent %d alerts", report.RunID, len(firing))
	writeJSON(w, http.StatusOK, sendResponse{Status: "sent", RunID: report.RunID, Count: len(firing), Alerts: firing})
}

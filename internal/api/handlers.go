package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rileyhilliard/vmwatch/internal/cache"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

type healthResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Cache     cache.Stats `json:"cache"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: s.now(),
		Cache:     s.monitor.Cache().Stats(),
	})
}

func (s *Server) listVMs(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.monitor.Registry().List(r.Context())
	if err != nil {
		s.log.Error("listing hosts: %s", errors.Reason(err))
		writeError(w, http.StatusInternalServerError, errors.ErrRegistry, errors.Reason(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vms": hosts, "count": len(hosts)})
}

func (s *Server) hostStats(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	fetch := s.monitor.HostMetrics
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		fetch = s.monitor.RefreshHostMetrics
	}
	res := fetch(r.Context(), label)
	writeJSON(w, hostStatusCode(res.Status), res)
}

func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.TestConnection(r.Context(), chi.URLParam(r, "label"))
	writeJSON(w, monitorStatusCode(res.Status), res)
}

// validateRequest is the body of POST /api/vm/validate.
type validateRequest struct {
	Label      string `json:"label"`
	Address    string `json:"ip"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	AuthMethod string `json:"auth_method"`
	Password   string `json:"password"`
	PrivateKey string `json:"private_key"`
}

func (s *Server) validateCredential(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	res := s.monitor.ValidateCredential(r.Context(), registry.Credential{
		Label:      req.Label,
		Address:    req.Address,
		Port:       req.Port,
		Username:   req.Username,
		AuthMethod: registry.AuthMethod(req.AuthMethod),
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
	})
	status := monitorStatusCode(res.Status)
	if res.Code == errors.ErrConfig {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

func (s *Server) cacheInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Cache().Stats())
}

// cacheClear drops every entry, or only ?vm=label when given.
func (s *Server) cacheClear(w http.ResponseWriter, r *http.Request) {
	c := s.monitor.Cache()
	if label := r.URL.Query().Get("vm"); label != "" {
		c.Invalidate(label)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Cache cleared for " + label})
		return
	}
	c.InvalidateAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Cache cleared"})
}

func (s *Server) listContainers(w http.ResponseWriter, r *http.Request) {
	kind, err := monitor.ParseDockerKind(r.URL.Query().Get("type"))
	if err != nil || kind == monitor.KindImages {
		badRequest(w, "type must be all or running")
		return
	}
	s.writeListing(w, r, kind)
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	s.writeListing(w, r, monitor.KindImages)
}

func (s *Server) writeListing(w http.ResponseWriter, r *http.Request, kind monitor.DockerKind) {
	res, err := s.monitor.ListDocker(r.Context(), chi.URLParam(r, "label"), kind)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, monitorStatusCode(res.Status), res)
}

func (s *Server) stoppedContainers(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.StoppedContainers(r.Context(), chi.URLParam(r, "label"))
	writeJSON(w, monitorStatusCode(res.Status), res)
}

func (s *Server) allContainerStats(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.AllContainerStats(r.Context(), chi.URLParam(r, "label"))
	writeJSON(w, monitorStatusCode(res.Status), res)
}

func (s *Server) containerResources(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.ContainerResources(r.Context(), chi.URLParam(r, "label"))
	writeJSON(w, monitorStatusCode(res.Status), res)
}

func (s *Server) containerStats(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.ContainerStats(r.Context(), chi.URLParam(r, "label"), chi.URLParam(r, "name"))
	writeJSON(w, statsStatusCode(res.Status), res)
}

func (s *Server) containerLogs(w http.ResponseWriter, r *http.Request) {
	lines := monitor.DefaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "lines must be a positive integer")
			return
		}
		lines = n
	}
	res := s.monitor.ContainerLogs(r.Context(), chi.URLParam(r, "label"), chi.URLParam(r, "name"), lines)
	writeJSON(w, monitorStatusCode(res.Status), res)
}

func (s *Server) startContainer(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.StartContainer(r.Context(), chi.URLParam(r, "label"), chi.URLParam(r, "name"))
	writeJSON(w, monitorStatusCode(res.Status), res)
}

func (s *Server) stopContainer(w http.ResponseWriter, r *http.Request) {
	res := s.monitor.StopContainer(r.Context(), chi.URLParam(r, "label"), chi.URLParam(r, "name"))
	writeJSON(w, monitorStatusCode(res.Status), res)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"routectl/internal/api"
	"routectl/internal/config"
	"routectl/internal/engine"
	"routectl/internal/registry"
	"routectl/internal/router"
)

// Server exposes the engine over an HTTP control API. All store access goes
// through the engine; handlers never touch the underlying containers.
type Server struct {
	cfg config.ServerConfig
	eng *engine.Engine
}

// New constructs a server around an engine.
func New(cfg config.ServerConfig, eng *engine.Engine) *Server {
	return &Server{cfg: cfg, eng: eng}
}

// Handler returns the route mux, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/nodes/register", s.handleRegister)
	mux.HandleFunc("/nodes/unregister", s.handleUnregister)
	mux.HandleFunc("/nodes/update", s.handleUpdate)
	mux.HandleFunc("/nodes", s.handleNodes)
	mux.HandleFunc("/affinity", s.handleAffinity)
	mux.HandleFunc("/route", s.handleRoute)
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/decisions", s.handleDecisions)
	mux.HandleFunc("/tunnels", s.handleTunnels)
	mux.HandleFunc("/stats/nodes", s.handleNodeStats)
	mux.HandleFunc("/stats/routing", s.handleRoutingStats)
	mux.HandleFunc("/stats/tunnels", s.handleTunnelStats)
	return mux
}

// ListenAndServe runs the HTTP server.
func (s *Server) ListenAndServe() error {
	server := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("control api listening on %s", s.cfg.Listen)
	return server.ListenAndServe()
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RegisterNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Node.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "node.id is required")
		return
	}
	s.eng.RegisterNode(req.Node)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.UnregisterNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NodeID == "" {
		writeJSONError(w, http.StatusBadRequest, "node_id is required")
		return
	}
	s.eng.UnregisterNode(req.NodeID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.UpdateMetricsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NodeID == "" {
		writeJSONError(w, http.StatusBadRequest, "node_id is required")
		return
	}
	upd := registry.MetricsUpdate{
		Reputation:       req.Reputation,
		EstimatedRuntime: req.EstimatedRuntime,
		CreditCost:       req.CreditCost,
		EnergyAffinity:   req.EnergyAffinity,
		Status:           req.Status,
		Capabilities:     req.Capabilities,
	}
	if err := s.eng.UpdateMetrics(req.NodeID, upd); err != nil {
		if errors.Is(err, registry.ErrNodeNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, api.NodesResponse{Nodes: s.eng.Nodes()})
}

func (s *Server) handleAffinity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.AffinityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NodeID == "" || req.Key == "" {
		writeJSONError(w, http.StatusBadRequest, "node_id and key are required")
		return
	}
	if err := s.eng.AddResourceKey(req.NodeID, req.Key); err != nil {
		if errors.Is(err, registry.ErrNodeNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RouteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Job.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "job.id is required")
		return
	}
	decision, err := s.eng.Route(req.Job)
	if err != nil {
		if errors.Is(err, router.ErrNoAvailableNodes) {
			// Retry-later condition, not a server fault.
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.RouteResponse{Decision: decision})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Job.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "job.id is required")
		return
	}
	// A FAILED result is still a 200: it is a routing outcome, not an
	// HTTP-level error.
	res := s.eng.RouteAndExecute(r.Context(), req.Job, req.SourceNode)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, api.DecisionsResponse{Decisions: s.eng.History()})
}

func (s *Server) handleTunnels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, api.TunnelsResponse{Tunnels: s.eng.Tunnels()})
}

func (s *Server) handleNodeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.NodeStatistics())
}

func (s *Server) handleRoutingStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.RoutingStatistics())
}

func (s *Server) handleTunnelStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.TunnelStatistics())
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

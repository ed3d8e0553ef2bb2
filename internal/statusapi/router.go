package statusapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smarttile-ops/internal/realtime"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Get("/{id}", s.handleGetNode)
			r.Get("/{id}/history", s.handleEntityHistory)
		})

		r.Route("/coordinators", func(r chi.Router) {
			r.Get("/", s.handleListCoordinators)
			r.Get("/{id}", s.handleGetCoordinator)
			r.Get("/{id}/history", s.handleEntityHistory)
		})

		r.Get("/presence", s.handlePresence)
	})

	return r
}

// channelStatus is the wire shape for one realtime channel's state.
type channelStatus struct {
	Connected         bool   `json:"connected"`
	Connecting        bool   `json:"connecting"`
	LastError         string `json:"last_error,omitempty"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

func toChannelStatus(state realtime.State) channelStatus {
	return channelStatus{
		Connected:         state.Connected,
		Connecting:        state.Connecting,
		LastError:         state.LastError,
		ReconnectAttempts: state.ReconnectAttempts,
	}
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStatus returns overall connectivity and cache state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	direct := s.direct.State()
	bridge := s.bridge.State()

	resp := map[string]any{
		"status":        overallStatus(direct, bridge),
		"cache_version": s.cache.Version(),
		"channels": map[string]any{
			"direct": toChannelStatus(direct),
			"bridge": toChannelStatus(bridge),
		},
	}

	if s.broker != nil {
		resp["broker_connected"] = s.broker.IsConnected()
	}
	if s.backendHealthy != nil {
		resp["backend_healthy"] = s.backendHealthy()
	}

	writeJSON(w, http.StatusOK, resp)
}

// overallStatus collapses channel states into ok / degraded / disconnected.
func overallStatus(direct, bridge realtime.State) string {
	switch {
	case direct.Connected && bridge.Connected:
		return "ok"
	case direct.Connected || bridge.Connected:
		return "degraded"
	default:
		return "disconnected"
	}
}

func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.cache.Nodes()
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	node, ok := s.cache.Node(id)
	if !ok {
		writeNotFound(w, "node not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleListCoordinators(w http.ResponseWriter, _ *http.Request) {
	coordinators := s.cache.Coordinators()
	writeJSON(w, http.StatusOK, map[string]any{
		"coordinators": coordinators,
		"count":        len(coordinators),
	})
}

func (s *Server) handleGetCoordinator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	coordinator, ok := s.cache.Coordinator(id)
	if !ok {
		writeNotFound(w, "coordinator not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, coordinator)
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	events := s.cache.Presence()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if limit < len(events) {
			events = events[:limit]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleEntityHistory serves the local SQLite change log for a node or
// coordinator. Returns 404-style behaviour only for a missing store, not
// for unknown entities (an empty list is a valid answer).
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.historyStore == nil {
		writeNotFound(w, "history is disabled")
		return
	}

	id := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.historyStore.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("history query failed", "entity_id", id, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}

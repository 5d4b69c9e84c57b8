package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-busdecode/internal/monitor"
)

// Telegram list limits.
const (
	defaultTelegramLimit = 50
	maxTelegramLimit     = 1000
)

// handleListDevices returns every individual address seen on the bus.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, r, errUnavailable("telegram recorder is disabled"))
		return
	}

	devices, err := s.store.Devices(r.Context())
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeError(w, r, errInternal("failed to list devices"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleListGroupAddresses returns every group address seen on the bus.
func (s *Server) handleListGroupAddresses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, r, errUnavailable("telegram recorder is disabled"))
		return
	}

	gas, err := s.store.GroupAddresses(r.Context())
	if err != nil {
		s.logger.Error("listing group addresses failed", "error", err)
		writeError(w, r, errInternal("failed to list group addresses"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group_addresses": gas,
		"count":           len(gas),
	})
}

// handleListTelegrams returns the most recent telegrams, newest first.
// Query: limit (1..1000, default 50).
func (s *Server) handleListTelegrams(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, r, errUnavailable("telegram recorder is disabled"))
		return
	}

	limit := defaultTelegramLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTelegramLimit {
			writeError(w, r, errBadRequest("limit must be an integer between 1 and 1000"))
			return
		}
		limit = n
	}

	telegrams, err := s.store.RecentTelegrams(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing telegrams failed", "error", err)
		writeError(w, r, errInternal("failed to list telegrams"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"telegrams": telegrams,
		"count":     len(telegrams),
	})
}

// handleStats returns the live session counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p := s.statsProvider()
	if p == nil {
		writeError(w, r, errUnavailable("monitor is not running"))
		return
	}
	writeJSON(w, http.StatusOK, monitor.NewStatsMessage(s.direction, p.Stats(), s.hub.now()))
}

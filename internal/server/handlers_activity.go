package server

import (
	"net/http"

	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/service"
)

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Activity.Recent(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req service.LogActivityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.svc.Activity.Log(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleActivityStream streams the caller's activity entries as they commit.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	s.broadcaster.ServeUser(w, r, auth.UserID(r.Context()))
}

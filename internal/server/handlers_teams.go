package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/service"
)

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTeamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Teams.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.svc.Teams.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": teams})
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Teams.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTeamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Teams.Update(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Teams.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Teams.ListMembers(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": members})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req service.AddMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Teams.AddMember(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateMemberRoleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Teams.UpdateMemberRole(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Teams.RemoveMember(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/service"
	"github.com/thebtf/promptvault/pkg/models"
)

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePromptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Prompts.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.svc.Prompts.List(r.Context(), auth.UserID(r.Context()), service.ListPromptsRequest{
		FolderID:    queryStringPtr(r, "folder_id"),
		ContentType: models.ContentType(r.URL.Query().Get("content_type")),
		Visibility:  models.Visibility(r.URL.Query().Get("visibility")),
		Tags:        queryList(r, "tags"),
		Cursor:      r.URL.Query().Get("cursor"),
		Limit:       limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSearchPrompts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.svc.Prompts.Search(r.Context(), auth.UserID(r.Context()), service.SearchPromptsRequest{
		Query:       r.URL.Query().Get("q"),
		ContentType: models.ContentType(r.URL.Query().Get("content_type")),
		Tags:        queryList(r, "tags"),
		Cursor:      r.URL.Query().Get("cursor"),
		Limit:       limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Prompts.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req service.UpdatePromptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Prompts.Update(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Prompts.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicatePrompt(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Prompts.Duplicate(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleMovePrompt(w http.ResponseWriter, r *http.Request) {
	var req service.MovePromptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Prompts.Move(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateVisibility(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateVisibilityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Prompts.UpdateVisibility(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddCoCreator(w http.ResponseWriter, r *http.Request) {
	var req service.AddCoCreatorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cc, err := s.svc.Prompts.AddCoCreator(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cc)
}

func (s *Server) handleRemoveCoCreator(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Prompts.RemoveCoCreator(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.Prompts.Versions(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": versions})
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, r, apperr.Validation("version must be a positive integer"))
		return
	}
	p, err := s.svc.Prompts.RestoreVersion(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePromptActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Activity.ForPrompt(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

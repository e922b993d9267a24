package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/service"
)

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateFolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.svc.Folders.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	listing, err := s.svc.Folders.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Folders.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateFolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.svc.Folders.Update(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Folders.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	var req service.MoveFolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.svc.Folders.Move(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

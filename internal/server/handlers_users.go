package server

import (
	"net/http"

	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/service"
	"github.com/thebtf/promptvault/pkg/models"
)

type sessionResponse struct {
	*auth.Token
	User *models.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Authenticate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, u)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	tok, err := s.issuer.Issue(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: tok, User: u})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLookupUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Lookup(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

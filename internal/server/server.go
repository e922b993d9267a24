// Package server exposes the services over HTTP.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/server/sse"
	"github.com/thebtf/promptvault/internal/service"
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Version        string
	Services       *service.Services
	Issuer         *auth.Issuer
	Broadcaster    *sse.Broadcaster
	DB             Pinger
	MetricsEnabled bool
}

// Server routes HTTP requests to the services.
type Server struct {
	router      chi.Router
	svc         *service.Services
	issuer      *auth.Issuer
	broadcaster *sse.Broadcaster
	db          Pinger
	version     string
	metrics     bool
	startTime   time.Time
	ready       atomic.Bool
}

// New builds a Server. It starts out not ready; call SetReady once
// dependencies are up.
func New(opts Options) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		svc:         opts.Services,
		issuer:      opts.Issuer,
		broadcaster: opts.Broadcaster,
		db:          opts.DB,
		version:     opts.Version,
		metrics:     opts.MetricsEnabled,
		startTime:   time.Now(),
	}
	if s.broadcaster == nil {
		s.broadcaster = sse.NewBroadcaster()
	}
	s.setupRoutes()
	return s
}

// SetReady marks the server as able to serve API requests.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(requestID, requestLogger, recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: "route not found"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Code: "BAD_REQUEST", Message: "method not allowed"}})
	})

	r.Get("/health", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireReady)

		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.issuer.Middleware(writeError))

			r.Get("/me", s.handleMe)
			r.Get("/users/lookup", s.handleLookupUser)

			r.Route("/prompts", func(r chi.Router) {
				r.Post("/", s.handleCreatePrompt)
				r.Get("/", s.handleListPrompts)
				r.Get("/search", s.handleSearchPrompts)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPrompt)
					r.Patch("/", s.handleUpdatePrompt)
					r.Delete("/", s.handleDeletePrompt)
					r.Post("/duplicate", s.handleDuplicatePrompt)
					r.Post("/move", s.handleMovePrompt)
					r.Put("/visibility", s.handleUpdateVisibility)
					r.Post("/co-creators", s.handleAddCoCreator)
					r.Delete("/co-creators/{userID}", s.handleRemoveCoCreator)
					r.Get("/versions", s.handleListVersions)
					r.Post("/versions/{version}/restore", s.handleRestoreVersion)
					r.Get("/activity", s.handlePromptActivity)
				})
			})

			r.Route("/folders", func(r chi.Router) {
				r.Post("/", s.handleCreateFolder)
				r.Get("/", s.handleListFolders)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetFolder)
					r.Patch("/", s.handleUpdateFolder)
					r.Delete("/", s.handleDeleteFolder)
					r.Post("/move", s.handleMoveFolder)
				})
			})

			r.Route("/teams", func(r chi.Router) {
				r.Post("/", s.handleCreateTeam)
				r.Get("/", s.handleListTeams)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetTeam)
					r.Patch("/", s.handleUpdateTeam)
					r.Delete("/", s.handleDeleteTeam)
					r.Get("/members", s.handleListMembers)
					r.Post("/members", s.handleAddMember)
					r.Patch("/members/{userID}", s.handleUpdateMemberRole)
					r.Delete("/members/{userID}", s.handleRemoveMember)
				})
			})

			r.Get("/activity", s.handleRecentActivity)
			r.Post("/activity", s.handleLogActivity)
			r.Get("/activity/stream", s.handleActivityStream)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	dbStatus := "ok"
	if !s.ready.Load() {
		status, code = "starting", http.StatusServiceUnavailable
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			dbStatus = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"database":       dbStatus,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// Package api is the HTTP orchestration surface: session creation, request
// validation, and dispatch into the fairness engines. It owns deadlines and
// serialization concerns; the engines themselves stay pure compute.
package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"fairlens/domain/core"
	"fairlens/internal/config"
	apperrors "fairlens/internal/errors"
	"fairlens/internal/session"
)

// Server is the fairness analysis API.
type Server struct {
	router   *gin.Engine
	sessions *session.Manager
	cfg      *config.Config
}

// NewServer wires the HTTP surface.
func NewServer(cfg *config.Config, sessions *session.Manager) *Server {
	gin.SetMode(cfg.Server.GinMode)

	s := &Server{
		router:   gin.New(),
		sessions: sessions,
		cfg:      cfg,
	}
	s.router.Use(gin.Logger(), gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.POST("/columns", s.handleColumns)
	s.router.POST("/sessions", s.handleCreateSession)
	s.router.GET("/sessions/:id", s.handleSessionInfo)
	s.router.GET("/sessions/:id/history", s.handleSessionHistory)
	s.router.POST("/sessions/:id/analyze", s.handleAnalyze)
	s.router.POST("/sessions/:id/search", s.handleSearch)
	s.router.POST("/sessions/:id/debug", s.handleDebug)
	s.router.POST("/sessions/:id/activations", s.handleActivations)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("[API] fairness analysis server listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":  "Fairness Analysis API",
		"status":   "running",
		"sessions": s.sessions.Count(),
	})
}

// renderError maps domain and application errors onto HTTP statuses with a
// stable error code, keeping enough context for the caller to fix the
// request.
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case core.IsConfigError(err), core.IsTopologyError(err):
		status = http.StatusBadRequest
	case apperrors.IsAppError(err):
		switch apperrors.GetCode(err) {
		case apperrors.CodeInvalidInput, apperrors.CodeConfigInvalid,
			apperrors.CodeDimensionMismatch, apperrors.CodeLayerIndexInvalid,
			apperrors.CodeNeuronIndexInvalid, apperrors.CodeOracleUnavailable:
			status = http.StatusBadRequest
		case apperrors.CodeNotFound:
			status = http.StatusNotFound
		}
	}
	c.JSON(status, gin.H{
		"status": "error",
		"code":   apperrors.GetCode(err),
		"detail": err.Error(),
	})
}

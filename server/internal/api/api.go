package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/opentracing/opentracing-go"

	"github.com/scusemua/notebook-runtime/server/internal/interpreter"
)

const (
	SettingsRoute = "/api/interpreter/setting"
	RestartRoute  = "/api/interpreter/setting/restart/:name"
	JobsRoute     = "/api/interpreter/jobs"
	MetricsRoute  = "/metrics"
)

var ErrServerClosed = errors.New("admin server is closed")

// Backend is the part of the interpreter manager exposed over HTTP.
type Backend interface {
	ListSettings() []*interpreter.Setting
	Restart(settingName string, noteId string) error
	Jobs() []interpreter.JobInfo
}

// MetricsHandler serves the Prometheus metrics of the process.
type MetricsHandler interface {
	HandleRequest(c *gin.Context)
}

type RestartRequest struct {
	NoteId string `json:"noteId"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// Server is the admin REST API of the notebook server.
type Server struct {
	log logger.Logger

	backend Backend
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// NewServer builds the routes of the admin API. metrics and tracer may be nil.
func NewServer(backend Backend, metrics MetricsHandler, tracer opentracing.Tracer) *Server {
	s := &Server{backend: backend}
	config.InitLogger(&s.log, s)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET(SettingsRoute, s.handleListSettings)
	engine.PUT(RestartRoute, s.handleRestart)
	engine.GET(JobsRoute, s.handleListJobs)
	if metrics != nil {
		engine.GET(MetricsRoute, metrics.HandleRequest)
	}

	s.handler = engine
	if tracer != nil {
		s.handler = nethttp.Middleware(tracer, engine, nethttp.OperationNameFunc(func(r *http.Request) string {
			return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
		}))
	}

	return s
}

// Handler returns the root handler, wrapped with tracing when a tracer was given.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve blocks, serving the API on the listener until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.httpServer = &http.Server{Handler: s.handler}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("Admin API is listening on %s", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleListSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.ListSettings())
}

func (s *Server) handleRestart(c *gin.Context) {
	var req RestartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
			return
		}
	}

	name := c.Param("name")
	if err := s.backend.Restart(name, req.NoteId); err != nil {
		if errors.Is(err, interpreter.ErrSettingNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
			return
		}

		s.log.Error("Failed to restart setting %s (note=\"%s\"): %v", name, req.NoteId, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}

	s.log.Debug("Restarted setting %s (note=\"%s\").", name, req.NoteId)
	c.Status(http.StatusOK)
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Jobs())
}

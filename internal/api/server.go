// Package api exposes the monitor's status over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"dqmon/app"
	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/internal"
	"dqmon/internal/errors"

	"github.com/gin-gonic/gin"
)

// Monitor is the part of the monitor service the API serves
type Monitor interface {
	RunCycle(ctx context.Context) (*app.CycleResult, error)
	LatestReport(ctx context.Context) (*quality.ReportRecord, error)
	Reports(ctx context.Context, limit int) ([]*quality.ReportRecord, error)
	SourceName() string
}

// Server routes the status endpoints
type Server struct {
	router  *gin.Engine
	monitor Monitor
	metrics http.Handler
	events  *EventHub
	log     *internal.Logger
	started time.Time
	srv     *http.Server
}

// NewServer creates the server. metrics and events may be nil.
func NewServer(monitor Monitor, metrics http.Handler, events *EventHub, log *internal.Logger) *Server {
	if log == nil {
		log = internal.Nop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		router:  router,
		monitor: monitor,
		metrics: metrics,
		events:  events,
		log:     log,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
	if s.events != nil {
		s.router.GET("/events", s.events.HandleEvents)
	}

	s.router.GET("/reports", s.handleListReports)
	s.router.GET("/reports/latest", s.handleLatestReport)
	s.router.POST("/cycles", s.handleRunCycle)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("Starting status API on http://%s", addr)
	if err := s.srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"source": s.monitor.SourceName(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleLatestReport(c *gin.Context) {
	rec, err := s.monitor.LatestReport(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListReports(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(c, errors.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.monitor.Reports(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": records, "count": len(records)})
}

func (s *Server) handleRunCycle(c *gin.Context) {
	res, err := s.monitor.RunCycle(c.Request.Context())
	switch {
	case stderrors.Is(err, app.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil && res == nil:
		s.writeError(c, err)
	case err != nil:
		// the cycle ran but persisting or alerting failed
		c.JSON(http.StatusOK, gin.H{"result": res, "error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}

// writeError maps domain and application errors to status codes
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case errors.GetCode(err) == errors.CodeInvalidInput:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

func requestLogger(log *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

// Package server exposes the research pipeline over HTTP. Runs are
// started, inspected, clarified, and reported through a small JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/deepscout/deepscout/pkg/config"
	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
	"github.com/deepscout/deepscout/pkg/pipeline"
	"github.com/deepscout/deepscout/pkg/state"
)

// Server wires the orchestrator and run store into an echo instance.
type Server struct {
	echo   *echo.Echo
	config config.ServerConfig
	logger observability.Logger
}

// New builds the HTTP server and mounts the research API
func New(cfg config.ServerConfig, orch *pipeline.Orchestrator, store *pipeline.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		echo:   e,
		config: cfg,
		logger: observability.NewStructuredLogger("server"),
	}

	h := &ResearchHandler{orch: orch, store: store}
	h.Register(e.Group("/api/research"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener fails
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "api server listening", map[string]interface{}{
		"addr": addr,
	})
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ResearchHandler exposes pipeline runs over the API
type ResearchHandler struct {
	orch  *pipeline.Orchestrator
	store *pipeline.Store
}

// NewResearchHandler creates the handler over an orchestrator and run store
func NewResearchHandler(orch *pipeline.Orchestrator, store *pipeline.Store) *ResearchHandler {
	return &ResearchHandler{orch: orch, store: store}
}

// Register mounts the research endpoints under the provided group
func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("", h.start)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/clarify", h.clarify)
	g.POST("/:id/report", h.forceReport)
	g.GET("/:id/report", h.getReport)
	g.GET("/:id/events", h.events)
}

type startRequest struct {
	Topic string `json:"topic"`
}

type startResponse struct {
	RunID    string         `json:"run_id"`
	Snapshot state.Snapshot `json:"snapshot"`
}

type clarifyRequest struct {
	Answer string `json:"answer"`
}

type reportResponse struct {
	RunID  string         `json:"run_id"`
	Report *domain.Report `json:"report"`
}

func (h *ResearchHandler) start(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	// The run outlives the request; it is driven by the background
	// context, not the request context.
	run := h.orch.Start(context.Background(), req.Topic)
	if err := h.store.Add(run); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, startResponse{
		RunID:    run.ID(),
		Snapshot: run.Snapshot(),
	})
}

func (h *ResearchHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.List())
}

func (h *ResearchHandler) get(c echo.Context) error {
	run, err := h.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, run.Snapshot())
}

func (h *ResearchHandler) clarify(c echo.Context) error {
	run, err := h.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	var req clarifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Answer == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "answer is required")
	}

	if err := run.Answer(req.Answer); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, run.Snapshot())
}

func (h *ResearchHandler) forceReport(c echo.Context) error {
	run, err := h.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	if err := run.ForceReport(); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusAccepted, run.Snapshot())
}

func (h *ResearchHandler) getReport(c echo.Context) error {
	run, err := h.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	if run.Stage() == domain.StageFailed {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, run.Err().Error())
	}
	report, err := run.Report()
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return c.JSON(http.StatusOK, reportResponse{
		RunID:  run.ID(),
		Report: report,
	})
}

func (h *ResearchHandler) events(c echo.Context) error {
	run, err := h.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, run.EventLog())
}

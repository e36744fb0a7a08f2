// Package server serves a mockapi.io compatible tasks resource for local use.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"smarttodo/internal/storage"
	"smarttodo/internal/task"
)

const DefaultPrefix = "/api/v1"

// Repository is the persistence the handlers need.
type Repository interface {
	ListTasks(ctx context.Context) ([]task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	ReplaceTask(ctx context.Context, id string, t task.Task) (task.Task, error)
	DeleteTask(ctx context.Context, id string) (task.Task, error)
}

type Server struct {
	echo *echo.Echo
	repo Repository
	log  *zap.Logger
}

type bodyValidator struct {
	validator *validator.Validate
}

func (v *bodyValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

type taskBody struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	IsCompleted bool   `json:"isCompleted"`
}

func (b taskBody) toTask() task.Task {
	return task.Task{
		Title:       b.Title,
		Description: b.Description,
		Deadline:    b.Deadline,
		IsCompleted: b.IsCompleted,
	}
}

func New(repo Repository, log *zap.Logger, prefix string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &bodyValidator{validator: validator.New()}

	s := &Server{echo: e, repo: repo, log: log}
	s.setupMiddleware()
	s.setupRoutes(strings.TrimRight(prefix, "/"))
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				s.log.Warn("http request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.log.Info("http request", fields...)
			return nil
		},
	}))
}

func (s *Server) setupRoutes(prefix string) {
	g := s.echo.Group(prefix)
	g.GET("/tasks", s.listTasks)
	g.POST("/tasks", s.createTask)
	g.GET("/tasks/:id", s.getTask)
	g.PUT("/tasks/:id", s.replaceTask)
	g.DELETE("/tasks/:id", s.deleteTask)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) listTasks(c echo.Context) error {
	tasks, err := s.repo.ListTasks(c.Request().Context())
	if err != nil {
		return s.internal(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) getTask(c echo.Context) error {
	t, err := s.repo.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) createTask(c echo.Context) error {
	body, err := s.bind(c)
	if err != nil {
		return err
	}
	t, err := s.repo.CreateTask(c.Request().Context(), body.toTask())
	if err != nil {
		return s.internal(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) replaceTask(c echo.Context) error {
	body, err := s.bind(c)
	if err != nil {
		return err
	}
	t, err := s.repo.ReplaceTask(c.Request().Context(), c.Param("id"), body.toTask())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTask(c echo.Context) error {
	t, err := s.repo.DeleteTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) bind(c echo.Context) (taskBody, error) {
	var body taskBody
	if err := c.Bind(&body); err != nil {
		return body, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	body.Title = strings.TrimSpace(body.Title)
	if err := c.Validate(&body); err != nil {
		return body, echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	return body, nil
}

// fail mirrors mockapi.io, which answers unknown ids with a bare JSON string.
func (s *Server) fail(c echo.Context, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, "Not found")
	}
	return s.internal(err)
}

func (s *Server) internal(err error) error {
	s.log.Error("repository error", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

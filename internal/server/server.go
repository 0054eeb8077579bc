package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/aaronromeo/sortpat/internal/run"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

// Runner triggers one classification run.
type Runner interface {
	Run(ctx context.Context) (model.RunSummary, error)
}

type errorResponse struct {
	Error   string            `json:"error"`
	Summary *model.RunSummary `json:"summary,omitempty"`
}

// Server exposes run triggering and the last run summary over HTTP.
type Server struct {
	app    *fiber.App
	runner Runner
	logger *slog.Logger

	mu   sync.RWMutex
	last *model.RunSummary
}

func New(runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{runner: runner, logger: logger}

	app := fiber.New(fiber.Config{
		AppName:               "sortpat",
		DisableStartupMessage: true,
	})
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/healthz"
	})))
	app.Get("/healthz", s.healthz)
	app.Post("/runs", s.triggerRun)
	app.Get("/runs/last", s.lastRun)

	s.app = app
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Record stores summary as the latest run. Runs started outside the HTTP
// API, such as scheduled ones, are reported through it.
func (s *Server) Record(summary model.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &summary
}

func (s *Server) latest() (model.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.RunSummary{}, false
	}
	return *s.last, true
}

func (s *Server) healthz(c *fiber.Ctx) error {
	body := fiber.Map{"status": "ok"}
	if last, ok := s.latest(); ok {
		body["last_run"] = fiber.Map{
			"run_id":      last.RunID,
			"final_state": last.FinalState,
			"finished_at": last.FinishedAt,
		}
	}
	return c.JSON(body)
}

func (s *Server) triggerRun(c *fiber.Ctx) error {
	summary, err := s.runner.Run(c.UserContext())
	if errors.Is(err, run.ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: err.Error()})
	}
	s.Record(summary)
	if err != nil {
		s.logger.Error("triggered run failed", slog.String("run_id", summary.RunID), slog.Any("error", err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: err.Error(), Summary: &summary})
	}
	return c.JSON(summary)
}

func (s *Server) lastRun(c *fiber.Ctx) error {
	last, ok := s.latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "no run recorded yet"})
	}
	return c.JSON(last)
}

// Package server exposes the feedback tool over HTTP with fiber.
package server

import (
	"context"
	"embed"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/config"
	"github.com/mrsingh-rishi/articulate/progress"
	"github.com/mrsingh-rishi/articulate/session"
	"github.com/mrsingh-rishi/articulate/workers"
)

// SessionCookie names the cookie carrying the browser session ID.
const SessionCookie = "articulate_sid"

const sessionLocal = "session"

//go:embed static/index.html
var staticFiles embed.FS

// Submitter runs a batch of uploads.
type Submitter interface {
	Submit(ctx context.Context, batch workers.Batch) (workers.BatchResult, error)
}

type Server struct {
	app      *fiber.App
	cfg      config.Config
	worker   Submitter
	sessions *session.Registry
	hub      *progress.Hub
	ready    atomic.Bool
	logger   zerolog.Logger
}

func New(cfg config.Config, worker Submitter, sessions *session.Registry, hub *progress.Hub, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		worker:   worker,
		sessions: sessions,
		hub:      hub,
		logger:   logger.With().Str("component", "http").Logger(),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		BodyLimit:             cfg.HTTP.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/readyz", func(c *fiber.Ctx) error {
		if !s.ready.Load() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "starting"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})
	if s.cfg.Telemetry.MetricsEnabled {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	s.app.Use(s.withSession)
	s.app.Get("/", s.handleIndex)

	api := s.app.Group("/api")
	api.Post("/feedback", s.handleFeedback)
	api.Get("/history", s.handleHistory)
	api.Get("/reports/:id/download", s.handleDownload)

	s.app.Use("/ws", requireUpgrade)
	s.app.Get("/ws/progress", s.progressHandler())
}

// App exposes the fiber app for tests and custom listeners.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetReady flips the /readyz answer.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("🚀 HTTP server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) withSession(c *fiber.Ctx) error {
	id := c.Cookies(SessionCookie)
	sess := s.sessions.GetOrCreate(id)
	if sess.ID != id {
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	c.Locals(sessionLocal, sess)
	return c.Next()
}

func sessionFrom(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(sessionLocal).(*session.Session)
	return sess
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	s.logger.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request")
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

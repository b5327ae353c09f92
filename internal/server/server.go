// Package server exposes the matcher over HTTP.
package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/matching"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Matcher is the part of matching.Matcher served over HTTP.
type Matcher interface {
	FindMatchesJSON(ctx context.Context, resume *matching.Resume, filters jobs.Filters) []byte
	ScoreOne(ctx context.Context, jobPostingID string, resume *matching.Resume) *matching.Score
}

// Recomputer refreshes the stored embedding of a posting.
type Recomputer interface {
	RecomputeEmbedding(ctx context.Context, jobPostingID, assembledText string) error
}

type Server struct {
	app     *fiber.App
	matcher Matcher
	jobs    jobs.Repository
	indexer Recomputer
	logger  *zap.Logger
}

// New builds the HTTP API. indexer may be nil, in which case the recompute
// endpoint answers 503.
func New(matcher Matcher, repo jobs.Repository, indexer Recomputer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		matcher: matcher,
		jobs:    repo,
		indexer: indexer,
		logger:  logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "hh-matcher",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(s.requestID)
	s.app.Get("/health", s.health)
	s.app.Post("/matches", s.findMatches)
	s.app.Get("/postings/:id/score", s.scoreOne)
	s.app.Post("/postings/:id/score", s.scoreOne)
	s.app.Post("/postings/:id/embedding", s.recomputeEmbedding)

	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := utils.CopyString(c.Get(requestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.Locals(requestIDHeader, id)
	return c.Next()
}

func (s *Server) requestLogger(c *fiber.Ctx) *zap.Logger {
	id, _ := c.Locals(requestIDHeader).(string)
	return s.logger.With(zap.String("request_id", id), zap.String("path", utils.CopyString(c.Path())))
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.requestLogger(c).Error("request failed", zap.Error(err))
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

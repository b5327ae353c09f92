package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"go.uber.org/zap"
)

type resumePayload struct {
	OwnerID      string    `json:"ownerId"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding,omitempty"`
	ModelVersion string    `json:"modelVersion,omitempty"`
}

func (r resumePayload) toResume() *matching.Resume {
	resume := matching.NewResume(r.OwnerID, r.Text)
	resume.Embedding = r.Embedding
	resume.ModelVersion = r.ModelVersion
	return resume
}

type matchRequest struct {
	Resume  resumePayload  `json:"resume"`
	Filters map[string]any `json:"filters"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) findMatches(c *fiber.Ctx) error {
	var req matchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	filters, err := jobs.ParseFilters(req.Filters)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	payload := s.matcher.FindMatchesJSON(c.UserContext(), req.Resume.toResume(), filters)
	if payload == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "match result could not be encoded")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}

// scoreOne accepts the resume either as a JSON body or as ownerId/text
// query parameters.
func (s *Server) scoreOne(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	var payload resumePayload
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
	} else {
		payload.OwnerID = c.Query("ownerId")
		payload.Text = c.Query("text")
	}

	if strings.TrimSpace(payload.Text) == "" && len(payload.Embedding) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "resume text is required"})
	}

	score := s.matcher.ScoreOne(c.UserContext(), id, payload.toResume())
	if score == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job posting could not be scored"})
	}

	return c.JSON(fiber.Map{
		"jobPostingId":      id,
		"matchScorePercent": score.MatchScorePercent,
		"cosineSimilarity":  score.CosineSimilarity,
	})
}

// recomputeEmbedding schedules an embedding refresh and returns immediately.
func (s *Server) recomputeEmbedding(c *fiber.Ctx) error {
	if s.indexer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "embedding recompute is not configured"})
	}

	// Params are only valid until the handler returns.
	id := utils.CopyString(strings.TrimSpace(c.Params("id")))
	posting, err := s.jobs.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return err
	}

	text := jobs.Assemble(posting).Text
	log := s.requestLogger(c).With(zap.String(logger.FieldJobPosting, id))

	go func() {
		if err := s.indexer.RecomputeEmbedding(context.Background(), id, text); err != nil {
			log.Warn("embedding recompute failed", zap.Error(err))
			return
		}
		log.Info("embedding recomputed")
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"jobPostingId": id, "status": "scheduled"})
}

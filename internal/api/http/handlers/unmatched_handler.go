package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/api/dto"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/pipeline"
	"github.com/spec-kit/intake-service/internal/repository"
	"github.com/spec-kit/intake-service/pkg/util"
)

// UnmatchedHandler manages manual resolution of parked inbound mail.
type UnmatchedHandler struct {
	unmatched repository.UnmatchedEmailRepository
	pipeline  *pipeline.Pipeline
	logger    *zap.Logger
}

// NewUnmatchedHandler constructs handler.
func NewUnmatchedHandler(unmatched repository.UnmatchedEmailRepository, p *pipeline.Pipeline, logger *zap.Logger) *UnmatchedHandler {
	return &UnmatchedHandler{unmatched: unmatched, pipeline: p, logger: logger}
}

// List GET /api/v1/unmatched.
func (h *UnmatchedHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)

	emails, err := h.unmatched.ListPending(c.UserContext(), limit, offset)
	if err != nil {
		return util.NewInternalError(err)
	}

	resp := dto.UnmatchedListResponse{
		Emails: make([]dto.UnmatchedEmailResponse, 0, len(emails)),
		Limit:  limit,
		Offset: offset,
	}
	for i := range emails {
		resp.Emails = append(resp.Emails, dto.NewUnmatchedEmailResponse(&emails[i]))
	}
	return c.JSON(resp)
}

// Resolve POST /api/v1/unmatched/:id/resolve attaches the email to a client
// and re-enters the pipeline.
func (h *UnmatchedHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolveUnmatchedRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if req.ClientID == "" {
		return util.NewValidationError("client_id is required", nil)
	}

	thread, err := h.pipeline.AdoptUnmatched(c.UserContext(), c.Params("id"), req.ClientID)
	if err != nil {
		return util.MapError(err)
	}

	h.logger.Info("unmatched email resolved",
		zap.String("unmatched_id", c.Params("id")),
		zap.String("thread_id", thread.ID))
	return c.Status(fiber.StatusCreated).JSON(dto.NewThreadSummary(thread))
}

// Ignore POST /api/v1/unmatched/:id/ignore.
func (h *UnmatchedHandler) Ignore(c *fiber.Ctx) error {
	email, err := h.unmatched.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return util.MapError(err)
	}
	if email.Status != domain.UnmatchedEmailStatusPending {
		return util.NewConflict("unmatched email is not pending", map[string]any{"status": string(email.Status)})
	}

	if err := h.unmatched.UpdateStatus(c.UserContext(), email.ID, domain.UnmatchedEmailStatusIgnored); err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"status": string(domain.UnmatchedEmailStatusIgnored)})
}

package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/api/dto"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/pipeline"
	"github.com/spec-kit/intake-service/internal/repository"
	"github.com/spec-kit/intake-service/pkg/util"
)

const defaultPageSize = 50

// ThreadsHandler manages the triage-view thread endpoints.
type ThreadsHandler struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewThreadsHandler constructs handler.
func NewThreadsHandler(threads repository.ThreadRepository, messages repository.MessageRepository, p *pipeline.Pipeline, logger *zap.Logger) *ThreadsHandler {
	return &ThreadsHandler{threads: threads, messages: messages, pipeline: p, logger: logger}
}

// List GET /api/v1/threads.
func (h *ThreadsHandler) List(c *fiber.Ctx) error {
	filter, err := parseThreadFilter(c)
	if err != nil {
		return err
	}

	threads, err := h.threads.ListWithFilter(c.UserContext(), filter)
	if err != nil {
		return util.NewInternalError(err)
	}

	resp := dto.ThreadListResponse{
		Threads: make([]dto.ThreadSummary, 0, len(threads)),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}
	for i := range threads {
		resp.Threads = append(resp.Threads, dto.NewThreadSummary(&threads[i]))
	}
	return c.JSON(resp)
}

// Get GET /api/v1/threads/:id.
func (h *ThreadsHandler) Get(c *fiber.Ctx) error {
	thread, err := h.threads.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return util.MapError(err)
	}
	messages, err := h.messages.ListByThread(c.UserContext(), thread.ID)
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(dto.NewThreadDetail(thread, messages))
}

// Reanalyze POST /api/v1/threads/:id/reanalyze queues a fresh analysis pass.
func (h *ThreadsHandler) Reanalyze(c *fiber.Ctx) error {
	thread, err := h.threads.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return util.MapError(err)
	}
	if err := h.pipeline.EnqueueAnalyze(c.UserContext(), thread.ID); err != nil {
		return util.NewInternalError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

// Snooze POST /api/v1/threads/:id/snooze silences escalations until the
// thread sees new activity.
func (h *ThreadsHandler) Snooze(c *fiber.Ctx) error {
	return h.transition(c, domain.ThreadStatusSnoozed)
}

// Resolve POST /api/v1/threads/:id/resolve.
func (h *ThreadsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, domain.ThreadStatusResolved)
}

func (h *ThreadsHandler) transition(c *fiber.Ctx, status domain.ThreadStatus) error {
	thread, err := h.threads.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return util.MapError(err)
	}
	if thread.Status == domain.ThreadStatusResolved {
		return util.NewConflict("thread is already resolved", map[string]any{"thread_id": thread.ID})
	}

	thread.Status = status
	thread.Touch(nowUTC())
	if err := h.threads.Update(c.UserContext(), thread); err != nil {
		return util.NewInternalError(err)
	}

	h.logger.Info("thread status changed",
		zap.String("thread_id", thread.ID),
		zap.String("status", string(status)))
	return c.JSON(dto.NewThreadSummary(thread))
}

func parseThreadFilter(c *fiber.Ctx) (repository.ThreadFilter, error) {
	filter := repository.ThreadFilter{
		Limit:  defaultPageSize,
		Offset: 0,
	}

	if v := c.Query("client_id"); v != "" {
		filter.ClientID = &v
	}
	if v := c.Query("project_id"); v != "" {
		filter.ProjectID = &v
	}
	if v := c.Query("assigned_to"); v != "" {
		filter.AssignedToID = &v
	}
	for _, raw := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.ThreadStatus(strings.ToUpper(raw)))
	}
	for _, raw := range splitQuery(c.Query("priority")) {
		p := domain.ThreadPriority(strings.ToUpper(raw))
		if !domain.ValidPriority(p) {
			return filter, util.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, p)
	}
	if v := c.Query("needs_triage"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, util.NewValidationError("invalid needs_triage filter", map[string]any{"needs_triage": v})
		}
		filter.NeedsTriage = &b
	}
	if v := c.Query("sla_breached"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, util.NewValidationError("invalid sla_breached filter", map[string]any{"sla_breached": v})
		}
		filter.SLABreached = &b
	}
	if v := c.QueryInt("limit"); v > 0 {
		filter.Limit = v
	}
	if v := c.QueryInt("offset"); v > 0 {
		filter.Offset = v
	}
	return filter, nil
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

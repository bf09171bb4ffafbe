package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intake-service/internal/assignment"
	"github.com/spec-kit/intake-service/internal/repository"
	"github.com/spec-kit/intake-service/pkg/util"
)

// AssignmentsHandler exposes the rebalancing advisor.
type AssignmentsHandler struct {
	users   repository.UserRepository
	threads repository.ThreadRepository
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(users repository.UserRepository, threads repository.ThreadRepository) *AssignmentsHandler {
	return &AssignmentsHandler{users: users, threads: threads}
}

// Rebalance GET /api/v1/assignments/rebalance reports load imbalance. It is
// advisory only and reassigns nothing.
func (h *AssignmentsHandler) Rebalance(c *fiber.Ctx) error {
	users, err := h.users.ListActive(c.UserContext())
	if err != nil {
		return util.NewInternalError(err)
	}
	counts, err := h.threads.OpenCountsByAssignee(c.UserContext())
	if err != nil {
		return util.NewInternalError(err)
	}

	report := assignment.Rebalance(assignment.Snapshot{Users: users, OpenCounts: counts})
	return c.JSON(report)
}

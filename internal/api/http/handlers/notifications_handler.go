package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intake-service/internal/api/dto"
	"github.com/spec-kit/intake-service/internal/repository"
	"github.com/spec-kit/intake-service/pkg/util"
)

// NotificationsHandler serves the stored notification feed.
type NotificationsHandler struct {
	notifications repository.NotificationRepository
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications repository.NotificationRepository) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /api/v1/notifications?user_id=...
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return util.NewValidationError("user_id is required", nil)
	}
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)

	notifications, err := h.notifications.ListByUser(c.UserContext(), userID, limit, offset)
	if err != nil {
		return util.NewInternalError(err)
	}

	resp := dto.NotificationListResponse{
		Notifications: make([]dto.NotificationResponse, 0, len(notifications)),
		Limit:         limit,
		Offset:        offset,
	}
	for i := range notifications {
		resp.Notifications = append(resp.Notifications, dto.NewNotificationResponse(&notifications[i]))
	}
	return c.JSON(resp)
}

// MarkRead POST /api/v1/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return util.MapError(err)
	}
	return c.JSON(fiber.Map{"status": "read"})
}

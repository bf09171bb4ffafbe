package dto

import (
	"time"

	"github.com/spec-kit/intake-service/internal/domain"
)

// NotificationResponse represents one stored notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Data      map[string]any          `json:"data,omitempty"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NotificationListResponse wraps a page of notifications.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

// NewNotificationResponse maps a domain notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

package notify

import (
	"context"

	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/queue"
)

// JobDeliver is handled by the notification worker pool; its payload is a
// DeliverPayload.
const JobDeliver = "deliver-notification"

// DeliverPayload carries one notification through the queue.
type DeliverPayload struct {
	UserID  string                  `json:"user_id"`
	Type    domain.NotificationType `json:"type"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Data    map[string]any          `json:"data,omitempty"`
}

// AsyncNotifier queues deliveries instead of writing them inline, so
// producers (assignment, escalation) never block on Postgres writes for
// notifications. The notification pool drains the queue into a Dispatcher.
type AsyncNotifier struct {
	queue queue.Enqueuer
}

// NewAsyncNotifier constructs an AsyncNotifier.
func NewAsyncNotifier(q queue.Enqueuer) *AsyncNotifier {
	return &AsyncNotifier{queue: q}
}

// Notify enqueues the notification for delivery.
func (n *AsyncNotifier) Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message string, data map[string]any) error {
	return n.queue.Enqueue(ctx, queue.QueueNotifications, JobDeliver, DeliverPayload{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    data,
	}, queue.Options{})
}

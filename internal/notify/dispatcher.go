// Package notify persists notification records and pushes them to per-user
// live channels. The durable write happens first so a dead subscriber never
// loses a notification.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/repository"
)

// Event is the live-channel message shape.
type Event struct {
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Data      map[string]any          `json:"data,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// Publisher pushes an event to a per-user addressable topic.
type Publisher interface {
	Publish(ctx context.Context, userID string, event Event) error
}

// RedisPublisher publishes on a Redis pub/sub channel per recipient.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates the production publisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// ChannelFor returns the pub/sub channel name for a user.
func ChannelFor(userID string) string {
	return fmt.Sprintf("intake:notify:user:%s", userID)
}

// Publish sends the event to the user's channel.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	return p.rdb.Publish(ctx, ChannelFor(userID), payload).Err()
}

// Notifier is the consumer-facing interface implemented by Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message string, data map[string]any) error
}

// Dispatcher writes the durable record, then publishes best-effort.
type Dispatcher struct {
	repo      repository.NotificationRepository
	publisher Publisher
	logger    *zap.Logger
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(repo repository.NotificationRepository, publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, publisher: publisher, logger: logger}
}

// Notify persists a notification and pushes it to the recipient's channel.
// A failed push is logged, not returned: the durable record already exists.
func (d *Dispatcher) Notify(ctx context.Context, userID string, typ domain.NotificationType, title, message string, data map[string]any) error {
	record := &domain.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := d.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	event := Event{
		Type:      typ,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: record.CreatedAt,
	}
	if err := d.publisher.Publish(ctx, userID, event); err != nil {
		d.logger.Warn("live notification push failed",
			zap.String("user_id", userID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
	return nil
}

package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/domain"
)

type fakeNotificationRepo struct {
	created []domain.Notification
	err     error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.err != nil {
		return f.err
	}
	n.ID = "n1"
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	return f.created, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id string) error { return nil }

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, userID string, event Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, userID)
	return nil
}

func TestNotifyPersistsThenPublishes(t *testing.T) {
	repo := &fakeNotificationRepo{}
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub, zap.NewNop())

	err := d.Notify(context.Background(), "u1", domain.NotificationTypeSLAWarning, "SLA warning", "thread stale", map[string]any{"thread_id": "t1"})

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, domain.NotificationTypeSLAWarning, repo.created[0].Type)
	assert.False(t, repo.created[0].Read)
	assert.Equal(t, []string{"u1"}, pub.published)
}

func TestNotifySurvivesDeadChannel(t *testing.T) {
	repo := &fakeNotificationRepo{}
	pub := &fakePublisher{err: errors.New("subscriber gone")}
	d := NewDispatcher(repo, pub, zap.NewNop())

	err := d.Notify(context.Background(), "u1", domain.NotificationTypeEscalation, "Escalated", "", nil)

	require.NoError(t, err)
	assert.Len(t, repo.created, 1, "durable record must exist despite push failure")
}

func TestNotifyFailsWhenPersistFails(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("db down")}
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub, zap.NewNop())

	err := d.Notify(context.Background(), "u1", domain.NotificationTypeSLABreach, "Breach", "", nil)

	require.Error(t, err)
	assert.Empty(t, pub.published, "no push without a durable record")
}

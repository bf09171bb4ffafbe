package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, zap.NewNop())
}

func TestEnqueueAbsorbsDuplicateDedupKey(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	opts := Options{Delay: time.Hour, DedupKey: "escalation-t1"}
	require.NoError(t, q.Enqueue(ctx, QueueEscalation, "escalation-check", map[string]string{"thread_id": "t1"}, opts))
	require.NoError(t, q.Enqueue(ctx, QueueEscalation, "escalation-check", map[string]string{"thread_id": "t1"}, opts))

	pending, err := q.rdb.ZCard(ctx, delayedKey(QueueEscalation)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending, "the second identical-keyed enqueue is absorbed")
}

func TestDedupKeyReleasedWhenJobRuns(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	pool := NewPool(q, QueueEscalation, 1, zap.NewNop(), nil)
	pool.Handle("escalation-check", func(ctx context.Context, job Job) error { return nil })

	opts := Options{DedupKey: "escalation-t1"}
	require.NoError(t, q.Enqueue(ctx, QueueEscalation, "escalation-check", nil, opts))
	require.NoError(t, q.Enqueue(ctx, QueueEscalation, "escalation-check", nil, opts))

	ready, err := q.rdb.LLen(ctx, readyKey(QueueEscalation)).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, ready)

	// Pop and run the job the way a worker would.
	encoded, err := q.rdb.RPop(ctx, readyKey(QueueEscalation)).Result()
	require.NoError(t, err)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(encoded), &job))
	pool.process(ctx, job)

	// With the key released the next enqueue goes through again.
	require.NoError(t, q.Enqueue(ctx, QueueEscalation, "escalation-check", nil, opts))
	ready, err = q.rdb.LLen(ctx, readyKey(QueueEscalation)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, ready)
}

func TestPromoteMovesDueDelayedJobs(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	base := time.Now()
	q.now = func() time.Time { return base }
	pool := NewPool(q, QueueHealthRecompute, 1, zap.NewNop(), nil)

	require.NoError(t, q.Enqueue(ctx, QueueHealthRecompute, "replan-project", nil, Options{Delay: time.Minute}))

	require.NoError(t, pool.promoteDue(ctx))
	ready, _ := q.rdb.LLen(ctx, readyKey(QueueHealthRecompute)).Result()
	assert.EqualValues(t, 0, ready, "not due yet")

	q.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.NoError(t, pool.promoteDue(ctx))

	ready, _ = q.rdb.LLen(ctx, readyKey(QueueHealthRecompute)).Result()
	assert.EqualValues(t, 1, ready)
	delayed, _ := q.rdb.ZCard(ctx, delayedKey(QueueHealthRecompute)).Result()
	assert.EqualValues(t, 0, delayed)
}

func TestExhaustedRecurringJobIsRearmed(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	pool := NewPool(q, QueueHealthRecompute, 1, zap.NewNop(), nil)

	job := buildJob(QueueHealthRecompute, "health-sweep", nil,
		Options{Repeat: time.Hour, DedupKey: "health-sweep"}, q.now())
	job.Attempt = job.MaxAttempts
	pool.retry(ctx, job, fmt.Errorf("postgres down"))

	delayed, err := q.rdb.ZCard(ctx, delayedKey(QueueHealthRecompute)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, delayed, "the next recurrence must survive a failed run")
}

func TestExhaustedOneShotJobIsDropped(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	pool := NewPool(q, QueueIntakePipeline, 1, zap.NewNop(), nil)

	job := buildJob(QueueIntakePipeline, "analyze-thread", nil, Options{}, q.now())
	job.Attempt = job.MaxAttempts
	pool.retry(ctx, job, fmt.Errorf("postgres down"))

	delayed, _ := q.rdb.ZCard(ctx, delayedKey(QueueIntakePipeline)).Result()
	assert.EqualValues(t, 0, delayed)
	ready, _ := q.rdb.LLen(ctx, readyKey(QueueIntakePipeline)).Result()
	assert.EqualValues(t, 0, ready)
}

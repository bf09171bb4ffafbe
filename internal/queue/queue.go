// Package queue implements durable named job queues on Redis: immediate and
// delayed execution, deduplication by caller-supplied key, retry with
// exponential backoff, and recurring jobs. A ready list holds runnable jobs,
// a sorted set holds delayed jobs scored by run time, and dedup keys are
// SETNX entries with a TTL.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Queue names used by the pipeline.
const (
	QueueIntakePipeline  = "intake-pipeline"
	QueueHealthRecompute = "health-recompute"
	QueueEscalation      = "escalation"
	QueueNotifications   = "notifications"
)

const (
	keyPrefix       = "intake:queue"
	defaultAttempts = 3
	defaultBackoff  = 30 * time.Second
	dedupGraceTTL   = 24 * time.Hour
)

// Options control scheduling behavior for a single enqueue.
type Options struct {
	// Delay postpones the first run.
	Delay time.Duration
	// DedupKey ensures at most one pending job with this key exists in the
	// queue; a colliding enqueue is silently absorbed.
	DedupKey string
	// Attempts caps retries; zero means the default of 3.
	Attempts int
	// Backoff is the base retry delay, doubled per attempt; zero means the
	// default of 30s.
	Backoff time.Duration
	// Repeat re-arms the job this long after each successful run.
	Repeat time.Duration
}

// Job is the wire format stored in Redis.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	BackoffMS   int64           `json:"backoff_ms"`
	DedupKey    string          `json:"dedup_key,omitempty"`
	RepeatMS    int64           `json:"repeat_ms,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// NextBackoff returns the delay before the given retry attempt
// (1-based): base * 2^(attempt-1).
func (j *Job) NextBackoff(attempt int) time.Duration {
	delay := time.Duration(j.BackoffMS) * time.Millisecond
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Enqueuer is the producer side of the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any, opts Options) error
}

// Queue is the Redis-backed implementation of Enqueuer; workers drain it via
// Pool (see worker.go).
type Queue struct {
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Queue on the shared Redis client.
func New(rdb *redis.Client, logger *zap.Logger) *Queue {
	return &Queue{rdb: rdb, logger: logger, now: time.Now}
}

// Enqueue schedules a job. A dedup collision is not an error.
func (q *Queue) Enqueue(ctx context.Context, queueName, jobName string, payload any, opts Options) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s/%s: %w", queueName, jobName, err)
	}

	job := buildJob(queueName, jobName, raw, opts, q.now())

	if job.DedupKey != "" {
		ok, err := q.claimDedup(ctx, queueName, job.DedupKey, opts.Delay)
		if err != nil {
			return err
		}
		if !ok {
			q.logger.Debug("duplicate job absorbed",
				zap.String("queue", queueName),
				zap.String("job", jobName),
				zap.String("dedup_key", job.DedupKey))
			return nil
		}
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s/%s: %w", queueName, jobName, err)
	}

	if opts.Delay > 0 {
		runAt := q.now().Add(opts.Delay)
		if err := q.rdb.ZAdd(ctx, delayedKey(queueName), redis.Z{
			Score:  float64(runAt.UnixMilli()),
			Member: string(encoded),
		}).Err(); err != nil {
			return fmt.Errorf("schedule delayed job %s/%s: %w", queueName, jobName, err)
		}
		return nil
	}

	if err := q.rdb.LPush(ctx, readyKey(queueName), string(encoded)).Err(); err != nil {
		return fmt.Errorf("enqueue job %s/%s: %w", queueName, jobName, err)
	}
	return nil
}

func buildJob(queueName, jobName string, payload json.RawMessage, opts Options, now time.Time) Job {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		Name:        jobName,
		Payload:     payload,
		Attempt:     0,
		MaxAttempts: attempts,
		BackoffMS:   backoff.Milliseconds(),
		DedupKey:    opts.DedupKey,
		RepeatMS:    opts.Repeat.Milliseconds(),
		EnqueuedAt:  now,
	}
}

// claimDedup marks the key as pending. Returns false when an identical-keyed
// job already exists.
func (q *Queue) claimDedup(ctx context.Context, queueName, key string, delay time.Duration) (bool, error) {
	ttl := delay + dedupGraceTTL
	set, err := q.rdb.SetNX(ctx, dedupKey(queueName, key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX %s: %w", key, err)
	}
	return set, nil
}

// releaseDedup frees the key once its job leaves the pending state.
func (q *Queue) releaseDedup(ctx context.Context, queueName, key string) {
	if key == "" {
		return
	}
	if err := q.rdb.Del(ctx, dedupKey(queueName, key)).Err(); err != nil {
		q.logger.Warn("release dedup key", zap.String("dedup_key", key), zap.Error(err))
	}
}

func readyKey(queueName string) string {
	return fmt.Sprintf("%s:%s:ready", keyPrefix, queueName)
}

func delayedKey(queueName string) string {
	return fmt.Sprintf("%s:%s:delayed", keyPrefix, queueName)
}

func dedupKey(queueName, key string) string {
	return fmt.Sprintf("%s:%s:dedup:%s", keyPrefix, queueName, key)
}

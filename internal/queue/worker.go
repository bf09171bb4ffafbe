package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/observability"
)

// Handler processes one job attempt. A returned error triggers a retry until
// MaxAttempts is reached.
type Handler func(ctx context.Context, job Job) error

// Pool drains a single named queue with bounded concurrency.
type Pool struct {
	queue       *Queue
	queueName   string
	concurrency int
	handlers    map[string]Handler
	logger      *zap.Logger
	metrics     *observability.Metrics

	mu sync.RWMutex
	wg sync.WaitGroup
}

// NewPool creates a worker pool for queueName.
func NewPool(q *Queue, queueName string, concurrency int, logger *zap.Logger, metrics *observability.Metrics) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		queue:       q,
		queueName:   queueName,
		concurrency: concurrency,
		handlers:    make(map[string]Handler),
		logger:      logger.With(zap.String("queue", queueName)),
		metrics:     metrics,
	}
}

// Handle registers the handler for a job name.
func (p *Pool) Handle(jobName string, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobName] = handler
}

// Start launches the promoter and worker goroutines. They stop when ctx is
// cancelled; Wait blocks until they drain.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.promote(ctx)
	}()

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(ctx)
		}()
	}
}

// Wait blocks until all pool goroutines have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// promote moves due delayed jobs onto the ready list.
func (p *Pool) promote(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.promoteDue(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("promote delayed jobs", zap.Error(err))
			}
		}
	}
}

func (p *Pool) promoteDue(ctx context.Context) error {
	now := p.queue.now().UnixMilli()
	members, err := p.queue.rdb.ZRangeByScore(ctx, delayedKey(p.queueName), &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: 100,
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range members {
		// ZRem returning 0 means another promoter already claimed it.
		removed, err := p.queue.rdb.ZRem(ctx, delayedKey(p.queueName), member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := p.queue.rdb.LPush(ctx, readyKey(p.queueName), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		encoded, err := p.queue.rdb.BRPop(ctx, time.Second, readyKey(p.queueName)).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			p.logger.Warn("pop job", zap.Error(err))
			continue
		}
		if len(encoded) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(encoded[1]), &job); err != nil {
			p.logger.Error("decode job", zap.Error(err))
			continue
		}
		p.process(ctx, job)
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	// The dedup key guards the pending state only; release it before running
	// so a handler can re-arm itself under the same key.
	p.queue.releaseDedup(ctx, p.queueName, job.DedupKey)

	p.mu.RLock()
	handler, ok := p.handlers[job.Name]
	p.mu.RUnlock()
	if !ok {
		p.logger.Error("no handler registered", zap.String("job", job.Name))
		return
	}

	job.Attempt++
	if err := handler(ctx, job); err != nil {
		p.retry(ctx, job, err)
		return
	}

	if job.RepeatMS > 0 {
		p.rearm(ctx, job)
	}
}

func (p *Pool) retry(ctx context.Context, job Job, cause error) {
	if job.Attempt >= job.MaxAttempts {
		p.metrics.RecordJobFailed(p.queueName)
		p.logger.Error("job permanently failed",
			zap.String("job", job.Name),
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempt),
			zap.Error(cause))
		// A recurring job outlives a failed run; the next recurrence still
		// fires with a fresh attempt count.
		if job.RepeatMS > 0 {
			p.rearm(ctx, job)
		}
		return
	}

	p.metrics.RecordJobRetry(p.queueName)
	delay := job.NextBackoff(job.Attempt)
	p.logger.Warn("job attempt failed; retrying",
		zap.String("job", job.Name),
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Duration("backoff", delay),
		zap.Error(cause))

	encoded, err := json.Marshal(job)
	if err != nil {
		p.logger.Error("marshal retry job", zap.Error(err))
		return
	}
	runAt := p.queue.now().Add(delay)
	if err := p.queue.rdb.ZAdd(ctx, delayedKey(p.queueName), redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: string(encoded),
	}).Err(); err != nil {
		p.logger.Error("schedule retry", zap.Error(err))
	}
}

// rearm schedules the next run of a recurring job.
func (p *Pool) rearm(ctx context.Context, job Job) {
	err := p.queue.Enqueue(ctx, p.queueName, job.Name, json.RawMessage(job.Payload), Options{
		Delay:    time.Duration(job.RepeatMS) * time.Millisecond,
		DedupKey: job.DedupKey,
		Attempts: job.MaxAttempts,
		Backoff:  time.Duration(job.BackoffMS) * time.Millisecond,
		Repeat:   time.Duration(job.RepeatMS) * time.Millisecond,
	})
	if err != nil {
		p.logger.Error("rearm recurring job", zap.String("job", job.Name), zap.Error(err))
	}
}

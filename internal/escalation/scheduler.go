// Package escalation advances threads through time-based escalation tiers
// and marks SLA breaches. Checks run as delayed queue jobs armed per thread,
// with a periodic sweep as backstop.
package escalation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/config"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/queue"
)

const (
	warningAfter   = 4 * time.Hour
	escalatedAfter = 8 * time.Hour

	// JobCheck evaluates a single thread's tiers.
	JobCheck = "escalation-check"
)

// CheckPayload identifies the thread a check job evaluates.
type CheckPayload struct {
	ThreadID string `json:"thread_id"`
}

// DedupKeyFor returns the per-thread dedup key. At most one pending check
// exists per thread no matter how many times it is armed.
func DedupKeyFor(threadID string) string {
	return "escalation-" + threadID
}

// Scheduler arms delayed check jobs for threads.
type Scheduler struct {
	queue  queue.Enqueuer
	sla    config.SLAConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler constructs a Scheduler.
func NewScheduler(q queue.Enqueuer, sla config.SLAConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{queue: q, sla: sla, logger: logger, now: time.Now}
}

// Arm schedules a check for the thread's next unfired threshold. A thread
// with nothing left to fire is left alone. Re-arming an already armed thread
// is absorbed by the dedup key.
func (s *Scheduler) Arm(ctx context.Context, thread *domain.Thread) error {
	due, ok := nextDue(thread, s.sla)
	if !ok {
		return nil
	}

	delay := due.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	err := s.queue.Enqueue(ctx, queue.QueueEscalation, JobCheck,
		CheckPayload{ThreadID: thread.ID},
		queue.Options{Delay: delay, DedupKey: DedupKeyFor(thread.ID)})
	if err != nil {
		return err
	}

	s.logger.Debug("escalation check armed",
		zap.String("thread_id", thread.ID),
		zap.Duration("delay", delay))
	return nil
}

// nextDue returns when the earliest unfired threshold comes due, measured
// from the thread's last activity.
func nextDue(thread *domain.Thread, sla config.SLAConfig) (time.Time, bool) {
	var pending []time.Duration
	switch thread.EscalationTier {
	case domain.EscalationTierNormal:
		pending = append(pending, warningAfter, escalatedAfter)
	case domain.EscalationTierWarning:
		pending = append(pending, escalatedAfter)
	}
	if !thread.SLABreached {
		pending = append(pending, time.Duration(sla.HoursFor(thread.Priority))*time.Hour)
	}
	if len(pending) == 0 {
		return time.Time{}, false
	}

	earliest := pending[0]
	for _, d := range pending[1:] {
		if d < earliest {
			earliest = d
		}
	}
	return thread.LastActivityAt.Add(earliest), true
}

package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/config"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/notify"
	"github.com/spec-kit/intake-service/internal/repository"
)

// Worker evaluates threads against tier thresholds and SLA windows, persists
// tier transitions and dispatches the associated notifications.
type Worker struct {
	threads   repository.ThreadRepository
	users     repository.UserRepository
	notifier  notify.Notifier
	scheduler *Scheduler
	sla       config.SLAConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewWorker constructs a Worker.
func NewWorker(threads repository.ThreadRepository, users repository.UserRepository, notifier notify.Notifier, scheduler *Scheduler, sla config.SLAConfig, logger *zap.Logger) *Worker {
	return &Worker{
		threads:   threads,
		users:     users,
		notifier:  notifier,
		scheduler: scheduler,
		sla:       sla,
		logger:    logger,
		now:       time.Now,
	}
}

// Check loads a thread and evaluates every due threshold. A vanished thread
// is not an error: the check outlived its subject.
func (w *Worker) Check(ctx context.Context, threadID string) error {
	thread, err := w.threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			w.logger.Debug("escalation check on missing thread", zap.String("thread_id", threadID))
			return nil
		}
		return fmt.Errorf("load thread %s: %w", threadID, err)
	}
	return w.evaluate(ctx, thread)
}

// Sweep re-evaluates every unresolved thread. It backstops checks lost to
// Redis flushes or downtime; per-thread failures are logged, not fatal.
func (w *Worker) Sweep(ctx context.Context) error {
	threads, err := w.threads.ListUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("list unresolved threads: %w", err)
	}

	for i := range threads {
		if err := w.evaluate(ctx, &threads[i]); err != nil {
			w.logger.Error("escalation sweep item failed",
				zap.String("thread_id", threads[i].ID),
				zap.Error(err))
		}
	}
	return nil
}

// evaluate fires every threshold the thread has passed since its recorded
// tier. A single pass can cross multiple tiers, e.g. after downtime.
func (w *Worker) evaluate(ctx context.Context, thread *domain.Thread) error {
	if thread.Status == domain.ThreadStatusResolved || thread.Status == domain.ThreadStatusSnoozed {
		return nil
	}

	elapsed := w.now().Sub(thread.LastActivityAt)
	firedWarning := false
	firedEscalation := false
	firedBreach := false

	if thread.EscalationTier == domain.EscalationTierNormal && elapsed >= warningAfter {
		thread.EscalationTier = domain.EscalationTierWarning
		firedWarning = true
	}

	if thread.EscalationTier == domain.EscalationTierWarning && elapsed >= escalatedAfter {
		thread.EscalationTier = domain.EscalationTierEscalated
		firedEscalation = true
	}

	slaWindow := time.Duration(w.sla.HoursFor(thread.Priority)) * time.Hour
	if !thread.SLABreached && elapsed >= slaWindow {
		thread.SLABreached = true
		firedBreach = true
	}

	// Persist before notifying: if the update fails the next pass re-fires,
	// and a notification sent ahead of a failed write would then double.
	if firedWarning || firedEscalation || firedBreach {
		if err := w.threads.Update(ctx, thread); err != nil {
			return fmt.Errorf("persist escalation state for %s: %w", thread.ID, err)
		}
	}

	if firedWarning {
		w.notifyAssignee(ctx, thread, domain.NotificationTypeSLAWarning,
			"Thread approaching SLA",
			fmt.Sprintf("No response on %q for over %d hours", thread.Subject, int(warningAfter.Hours())))
	}
	if firedEscalation {
		w.notifyAdmins(ctx, thread, domain.NotificationTypeEscalation,
			"Thread escalated",
			fmt.Sprintf("%q has gone unanswered for over %d hours", thread.Subject, int(escalatedAfter.Hours())))
	}
	if firedBreach {
		w.notifyAdmins(ctx, thread, domain.NotificationTypeSLABreach,
			"SLA breached",
			fmt.Sprintf("%q exceeded its %d hour %s SLA", thread.Subject, w.sla.HoursFor(thread.Priority), thread.Priority))
	}

	// Arm the next unfired threshold, if one remains.
	if err := w.scheduler.Arm(ctx, thread); err != nil {
		w.logger.Warn("re-arm escalation check failed",
			zap.String("thread_id", thread.ID),
			zap.Error(err))
	}
	return nil
}

func (w *Worker) notifyAssignee(ctx context.Context, thread *domain.Thread, typ domain.NotificationType, title, message string) {
	if thread.AssignedToID == nil {
		return
	}
	w.dispatch(ctx, *thread.AssignedToID, thread, typ, title, message)
}

func (w *Worker) notifyAdmins(ctx context.Context, thread *domain.Thread, typ domain.NotificationType, title, message string) {
	admins, err := w.users.ListActiveAdmins(ctx)
	if err != nil {
		w.logger.Error("list admins for escalation failed", zap.Error(err))
		return
	}
	for i := range admins {
		w.dispatch(ctx, admins[i].ID, thread, typ, title, message)
	}
}

func (w *Worker) dispatch(ctx context.Context, userID string, thread *domain.Thread, typ domain.NotificationType, title, message string) {
	err := w.notifier.Notify(ctx, userID, typ, title, message, map[string]any{
		"thread_id": thread.ID,
		"priority":  string(thread.Priority),
	})
	if err != nil {
		w.logger.Error("escalation notification failed",
			zap.String("thread_id", thread.ID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

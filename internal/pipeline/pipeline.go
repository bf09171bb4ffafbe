// Package pipeline orchestrates the intake flow: normalized inbound mail is
// matched, analyzed, assigned, drafted and armed for escalation through a
// chain of queue jobs.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/assignment"
	"github.com/spec-kit/intake-service/internal/classify"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/escalation"
	"github.com/spec-kit/intake-service/internal/intake"
	"github.com/spec-kit/intake-service/internal/notify"
	"github.com/spec-kit/intake-service/internal/queue"
	"github.com/spec-kit/intake-service/internal/replan"
	"github.com/spec-kit/intake-service/internal/repository"
)

// Job names handled by the pipeline's pools.
const (
	JobProcessInbound  = "process-inbound"
	JobAnalyzeThread   = "analyze-thread"
	JobRecomputeHealth = "recompute-health"
	JobHealthSweep     = "health-sweep"
	JobReplanProject   = "replan-project"
	JobEscalationSweep = "escalation-sweep"
)

// replanDebounce coalesces replan triggers from a burst of inbound mail on
// the same project into one oracle call.
const replanDebounce = time.Minute

// InboundPayload wraps a normalized message for the intake queue.
type InboundPayload struct {
	Message intake.InboundMessage `json:"message"`
}

// ThreadPayload identifies a thread for analyze jobs.
type ThreadPayload struct {
	ThreadID string `json:"thread_id"`
}

// ProjectPayload identifies a project for health and replan jobs.
type ProjectPayload struct {
	ProjectID string `json:"project_id"`
}

// Pipeline wires the stage components together and exposes them as queue
// handlers.
type Pipeline struct {
	controller  *intake.Controller
	gateway     *classify.Gateway
	assigner    *assignment.Service
	replanner   *replan.Replanner
	scheduler   *escalation.Scheduler
	escalations *escalation.Worker

	threads   repository.ThreadRepository
	messages  repository.MessageRepository
	clients   repository.ClientRepository
	projects  repository.ProjectRepository
	users     repository.UserRepository
	unmatched repository.UnmatchedEmailRepository

	queue    queue.Enqueuer
	notifier notify.Notifier
	logger   *zap.Logger
}

// Dependencies bundles everything a Pipeline needs.
type Dependencies struct {
	Controller  *intake.Controller
	Gateway     *classify.Gateway
	Assigner    *assignment.Service
	Replanner   *replan.Replanner
	Scheduler   *escalation.Scheduler
	Escalations *escalation.Worker

	Threads   repository.ThreadRepository
	Messages  repository.MessageRepository
	Clients   repository.ClientRepository
	Projects  repository.ProjectRepository
	Users     repository.UserRepository
	Unmatched repository.UnmatchedEmailRepository

	Queue    queue.Enqueuer
	Notifier notify.Notifier
}

// New constructs a Pipeline.
func New(deps Dependencies, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		controller:  deps.Controller,
		gateway:     deps.Gateway,
		assigner:    deps.Assigner,
		replanner:   deps.Replanner,
		scheduler:   deps.Scheduler,
		escalations: deps.Escalations,
		threads:     deps.Threads,
		messages:    deps.Messages,
		clients:     deps.Clients,
		projects:    deps.Projects,
		users:       deps.Users,
		unmatched:   deps.Unmatched,
		queue:       deps.Queue,
		notifier:    deps.Notifier,
		logger:      logger,
	}
}

// Register attaches the pipeline's handlers to their pools.
func (p *Pipeline) Register(intakePool, healthPool, escalationPool *queue.Pool) {
	intakePool.Handle(JobProcessInbound, p.handleProcessInbound)
	intakePool.Handle(JobAnalyzeThread, p.handleAnalyzeThread)
	healthPool.Handle(JobRecomputeHealth, p.handleRecomputeHealth)
	healthPool.Handle(JobHealthSweep, p.handleHealthSweep)
	healthPool.Handle(JobReplanProject, p.handleReplanProject)
	escalationPool.Handle(escalation.JobCheck, p.handleEscalationCheck)
	escalationPool.Handle(JobEscalationSweep, p.handleEscalationSweep)
}

// ScheduleSweeps arms the recurring backstop jobs: an hourly health sweep
// across all projects and a 15-minute escalation sweep across unresolved
// threads. Dedup keys make this safe to call from every instance at boot.
func (p *Pipeline) ScheduleSweeps(ctx context.Context) error {
	err := p.queue.Enqueue(ctx, queue.QueueHealthRecompute, JobHealthSweep, struct{}{},
		queue.Options{Repeat: time.Hour, DedupKey: JobHealthSweep})
	if err != nil {
		return fmt.Errorf("schedule health sweep: %w", err)
	}
	err = p.queue.Enqueue(ctx, queue.QueueEscalation, JobEscalationSweep, struct{}{},
		queue.Options{Repeat: 15 * time.Minute, DedupKey: JobEscalationSweep})
	if err != nil {
		return fmt.Errorf("schedule escalation sweep: %w", err)
	}
	return nil
}

// EnqueueInbound hands a normalized message to the intake queue. The webhook
// handler returns as soon as this succeeds.
func (p *Pipeline) EnqueueInbound(ctx context.Context, msg *intake.InboundMessage) error {
	return p.queue.Enqueue(ctx, queue.QueueIntakePipeline, JobProcessInbound, InboundPayload{Message: *msg}, queue.Options{})
}

// EnqueueAnalyze schedules a full re-analysis of an existing thread.
func (p *Pipeline) EnqueueAnalyze(ctx context.Context, threadID string) error {
	return p.queue.Enqueue(ctx, queue.QueueIntakePipeline, JobAnalyzeThread,
		ThreadPayload{ThreadID: threadID},
		queue.Options{DedupKey: "analyze-" + threadID})
}

// AdoptUnmatched resolves a parked email into a thread for the given client
// and re-enters the pipeline at the analysis stage.
func (p *Pipeline) AdoptUnmatched(ctx context.Context, emailID, clientID string) (*domain.Thread, error) {
	email, err := p.unmatched.GetByID(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("load unmatched email %s: %w", emailID, err)
	}
	if email.Status != domain.UnmatchedEmailStatusPending {
		return nil, fmt.Errorf("unmatched email %s already %s", emailID, email.Status)
	}

	thread, err := p.controller.Adopt(ctx, email, clientID)
	if err != nil {
		return nil, err
	}
	if err := p.unmatched.UpdateStatus(ctx, emailID, domain.UnmatchedEmailStatusResolved); err != nil {
		return nil, fmt.Errorf("mark unmatched email resolved: %w", err)
	}

	if err := p.EnqueueAnalyze(ctx, thread.ID); err != nil {
		p.logger.Error("queue analysis for adopted thread failed",
			zap.String("thread_id", thread.ID), zap.Error(err))
	}
	return thread, nil
}

func (p *Pipeline) handleProcessInbound(ctx context.Context, job queue.Job) error {
	var payload InboundPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode inbound payload: %w", err)
	}

	result, err := p.controller.Process(ctx, &payload.Message)
	if err != nil {
		return err
	}
	if result.Outcome != intake.OutcomeThread {
		return nil
	}
	return p.enrich(ctx, result.Thread, payload.Message.Subject, payload.Message.BodyText)
}

func (p *Pipeline) handleAnalyzeThread(ctx context.Context, job queue.Job) error {
	var payload ThreadPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode thread payload: %w", err)
	}

	thread, err := p.threads.GetByID(ctx, payload.ThreadID)
	if err != nil {
		return fmt.Errorf("load thread %s: %w", payload.ThreadID, err)
	}
	latest, err := p.messages.LatestByThread(ctx, thread.ID)
	if err != nil {
		return fmt.Errorf("load latest message for %s: %w", thread.ID, err)
	}
	return p.enrich(ctx, thread, latest.Subject, latest.BodyText)
}

// enrich runs the post-match stages on a thread: analysis, assignment, reply
// draft, project recompute triggers and escalation arming. Analysis never
// touches the assignee; only the assignment stage does.
func (p *Pipeline) enrich(ctx context.Context, thread *domain.Thread, subject, body string) error {
	analysis := p.gateway.Analyze(ctx, classify.AnalyzeInput{
		Subject:     subject,
		BodyText:    body,
		ClientName:  p.clientName(ctx, thread),
		ProjectName: p.projectName(ctx, thread),
	})

	thread.Intent = analysis.Intent
	thread.Summary = analysis.Summary
	thread.Priority = analysis.Urgency
	thread.UrgencyReason = analysis.UrgencyReason
	thread.Sentiment = analysis.Sentiment
	if err := p.threads.Update(ctx, thread); err != nil {
		return fmt.Errorf("persist analysis for %s: %w", thread.ID, err)
	}

	if thread.NeedsTriage {
		p.notifyTriage(ctx, thread)
	}

	if _, err := p.assigner.Assign(ctx, thread); err != nil {
		p.logger.Error("assignment failed", zap.String("thread_id", thread.ID), zap.Error(err))
	}

	draft := p.gateway.Draft(ctx, classify.DraftInput{
		Subject:          subject,
		BodyText:         body,
		ClientName:       p.clientName(ctx, thread),
		Intent:           analysis.Intent,
		ResponseApproach: analysis.ResponseApproach,
	})
	if draft.Draft != "" {
		thread.DraftResponse = &draft.Draft
		if err := p.threads.Update(ctx, thread); err != nil {
			p.logger.Error("persist draft failed", zap.String("thread_id", thread.ID), zap.Error(err))
		}
	}

	if thread.ProjectID != nil {
		p.triggerProjectRecompute(ctx, *thread.ProjectID)
	}

	if err := p.scheduler.Arm(ctx, thread); err != nil {
		p.logger.Error("arm escalation failed", zap.String("thread_id", thread.ID), zap.Error(err))
	}

	p.logger.Info("thread enriched",
		zap.String("thread_id", thread.ID),
		zap.String("intent", analysis.Intent),
		zap.String("priority", string(thread.Priority)))
	return nil
}

// triggerProjectRecompute queues the deterministic health pass immediately
// and a debounced oracle replan.
func (p *Pipeline) triggerProjectRecompute(ctx context.Context, projectID string) {
	err := p.queue.Enqueue(ctx, queue.QueueHealthRecompute, JobRecomputeHealth,
		ProjectPayload{ProjectID: projectID},
		queue.Options{DedupKey: "health-" + projectID})
	if err != nil {
		p.logger.Error("queue health recompute failed", zap.String("project_id", projectID), zap.Error(err))
	}

	err = p.queue.Enqueue(ctx, queue.QueueHealthRecompute, JobReplanProject,
		ProjectPayload{ProjectID: projectID},
		queue.Options{Delay: replanDebounce, DedupKey: "replan-" + projectID})
	if err != nil {
		p.logger.Error("queue replan failed", zap.String("project_id", projectID), zap.Error(err))
	}
}

func (p *Pipeline) notifyTriage(ctx context.Context, thread *domain.Thread) {
	admins, err := p.users.ListActiveAdmins(ctx)
	if err != nil {
		p.logger.Error("list admins for triage failed", zap.Error(err))
		return
	}
	for i := range admins {
		err := p.notifier.Notify(ctx, admins[i].ID, domain.NotificationTypeNeedsTriage,
			"Thread needs triage", thread.Subject,
			map[string]any{"thread_id": thread.ID, "confidence": thread.MatchConfidence})
		if err != nil {
			p.logger.Warn("triage notification failed", zap.String("thread_id", thread.ID), zap.Error(err))
		}
	}
}

func (p *Pipeline) handleRecomputeHealth(ctx context.Context, job queue.Job) error {
	var payload ProjectPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode project payload: %w", err)
	}
	return p.replanner.RecomputeHealth(ctx, payload.ProjectID)
}

func (p *Pipeline) handleReplanProject(ctx context.Context, job queue.Job) error {
	var payload ProjectPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode project payload: %w", err)
	}
	return p.replanner.Replan(ctx, payload.ProjectID)
}

// handleHealthSweep fans out a health recompute for every project.
func (p *Pipeline) handleHealthSweep(ctx context.Context, job queue.Job) error {
	ids, err := p.projects.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	for _, id := range ids {
		err := p.queue.Enqueue(ctx, queue.QueueHealthRecompute, JobRecomputeHealth,
			ProjectPayload{ProjectID: id},
			queue.Options{DedupKey: "health-" + id})
		if err != nil {
			p.logger.Error("queue health recompute failed", zap.String("project_id", id), zap.Error(err))
		}
	}
	return nil
}

func (p *Pipeline) handleEscalationCheck(ctx context.Context, job queue.Job) error {
	var payload escalation.CheckPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode escalation payload: %w", err)
	}
	return p.escalations.Check(ctx, payload.ThreadID)
}

func (p *Pipeline) handleEscalationSweep(ctx context.Context, job queue.Job) error {
	return p.escalations.Sweep(ctx)
}

func (p *Pipeline) clientName(ctx context.Context, thread *domain.Thread) string {
	if thread.ClientID == nil {
		return ""
	}
	client, err := p.clients.GetByID(ctx, *thread.ClientID)
	if err != nil {
		return ""
	}
	return client.Name
}

func (p *Pipeline) projectName(ctx context.Context, thread *domain.Thread) string {
	if thread.ProjectID == nil {
		return ""
	}
	project, err := p.projects.GetByID(ctx, *thread.ProjectID)
	if err != nil {
		return ""
	}
	return project.Name
}

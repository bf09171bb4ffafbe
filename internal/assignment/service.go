package assignment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/notify"
	"github.com/spec-kit/intake-service/internal/repository"
)

// Service wraps the pure engine with snapshot construction and persistence.
type Service struct {
	engine   *Engine
	threads  repository.ThreadRepository
	users    repository.UserRepository
	projects repository.ProjectRepository
	rules    repository.AssignmentRuleRepository
	notifier notify.Notifier
	logger   *zap.Logger
}

// Dependencies bundles repositories for the service.
type Dependencies struct {
	Threads  repository.ThreadRepository
	Users    repository.UserRepository
	Projects repository.ProjectRepository
	Rules    repository.AssignmentRuleRepository
	Notifier notify.Notifier
}

// NewService creates the service.
func NewService(engine *Engine, deps Dependencies, logger *zap.Logger) *Service {
	return &Service{
		engine:   engine,
		threads:  deps.Threads,
		users:    deps.Users,
		projects: deps.Projects,
		rules:    deps.Rules,
		notifier: deps.Notifier,
		logger:   logger,
	}
}

// Snapshot loads the world state a decision is computed from.
func (s *Service) Snapshot(ctx context.Context, thread *domain.Thread) (Snapshot, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list active users: %w", err)
	}
	counts, err := s.threads.OpenCountsByAssignee(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open thread counts: %w", err)
	}
	rules, err := s.rules.ListActive(ctx, domain.AssignmentRuleTypeClient)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list client rules: %w", err)
	}

	snap := Snapshot{Users: users, OpenCounts: counts, ClientRules: rules}
	if thread.ProjectID != nil {
		project, err := s.projects.GetByID(ctx, *thread.ProjectID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load project %s: %w", *thread.ProjectID, err)
		}
		snap.ProjectOwnerID = project.OwnerID
	}
	return snap, nil
}

// Assign decides an owner for the thread, persists it, and notifies the new
// assignee. An exhausted chain (no admin anywhere) is not an error: the
// thread stays unassigned and visible to triage.
func (s *Service) Assign(ctx context.Context, thread *domain.Thread) (Decision, error) {
	snap, err := s.Snapshot(ctx, thread)
	if err != nil {
		return Decision{}, err
	}

	decision := s.engine.Decide(thread, snap)
	s.logger.Info("assignment decided",
		zap.String("thread_id", thread.ID),
		zap.String("rule", decision.Rule),
		zap.Stringp("user_id", decision.UserID))

	if decision.UserID == nil {
		return decision, nil
	}

	previous := thread.AssignedToID
	thread.AssignedToID = decision.UserID
	if err := s.threads.Update(ctx, thread); err != nil {
		thread.AssignedToID = previous
		return Decision{}, fmt.Errorf("persist assignment: %w", err)
	}

	if err := s.notifier.Notify(ctx, *decision.UserID, domain.NotificationTypeThreadAssigned,
		"Thread assigned to you", thread.Subject,
		map[string]any{"thread_id": thread.ID, "rule": decision.Rule}); err != nil {
		s.logger.Warn("assignee notification failed", zap.String("thread_id", thread.ID), zap.Error(err))
	}
	return decision, nil
}

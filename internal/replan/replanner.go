// Package replan recomputes a project's health and task plan from its
// non-resolved threads.
package replan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/classify"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/repository"
)

const (
	staleAfter    = 3 * 24 * time.Hour
	longWaitAfter = 5 * 24 * time.Hour

	// titlePrefixLen bounds the approximate duplicate-task check: two task
	// titles are treated as the same task when their first 20 characters
	// agree. Known to both miss rephrased duplicates and collide on shared
	// prefixes; swap TitleSimilar to change the heuristic.
	titlePrefixLen = 20
)

// TitleSimilar reports whether two task titles refer to the same task.
type TitleSimilar func(a, b string) bool

// PrefixTitleSimilar is the default similarity: case-insensitive equality of
// the first 20 characters.
func PrefixTitleSimilar(a, b string) bool {
	return titlePrefix(a) == titlePrefix(b)
}

func titlePrefix(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	if len(normalized) > titlePrefixLen {
		return normalized[:titlePrefixLen]
	}
	return normalized
}

// HealthScore computes the deterministic health pass over a project's
// non-resolved threads: start at 100, subtract for critical threads, queue
// depth and staleness, clamp to [0,100].
func HealthScore(threads []domain.Thread, now time.Time) (int, domain.ProjectHealth) {
	score := 100

	awaiting := 0
	stale := 0
	longWait := 0
	critical := false
	for i := range threads {
		t := &threads[i]
		if t.Status == domain.ThreadStatusResolved {
			continue
		}
		if t.Priority == domain.ThreadPriorityCritical {
			critical = true
		}
		if t.Status == domain.ThreadStatusAwaitingResponse {
			awaiting++
			if now.Sub(t.LastActivityAt) >= longWaitAfter {
				longWait++
			}
		}
		if now.Sub(t.LastActivityAt) >= staleAfter {
			stale++
		}
	}

	if critical {
		score -= 30
	}
	if awaiting > 2 {
		score -= 15
	}
	score -= min(10*stale, 30)
	score -= min(5*longWait, 20)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, healthFor(score)
}

func healthFor(score int) domain.ProjectHealth {
	switch {
	case score >= 80:
		return domain.ProjectHealthOnTrack
	case score >= 50:
		return domain.ProjectHealthNeedsAttention
	default:
		return domain.ProjectHealthAtRisk
	}
}

// Replanner owns project health and plan recomputation.
type Replanner struct {
	gateway  *classify.Gateway
	projects repository.ProjectRepository
	threads  repository.ThreadRepository
	tasks    repository.TaskRepository
	clients  repository.ClientRepository
	logger   *zap.Logger

	// Similar decides task-title duplication during reconciliation.
	Similar TitleSimilar
	now     func() time.Time
}

// NewReplanner constructs a replanner with the default title similarity.
func NewReplanner(gateway *classify.Gateway, projects repository.ProjectRepository, threads repository.ThreadRepository, tasks repository.TaskRepository, clients repository.ClientRepository, logger *zap.Logger) *Replanner {
	return &Replanner{
		gateway:  gateway,
		projects: projects,
		threads:  threads,
		tasks:    tasks,
		clients:  clients,
		logger:   logger,
		Similar:  PrefixTitleSimilar,
		now:      time.Now,
	}
}

// RecomputeHealth runs the deterministic health pass and persists the result.
// No oracle call is made.
func (r *Replanner) RecomputeHealth(ctx context.Context, projectID string) error {
	project, err := r.projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	threads, err := r.threads.ListUnresolvedByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list project threads: %w", err)
	}

	score, health := HealthScore(threads, r.now())
	project.HealthScore = score
	project.Health = health
	if err := r.projects.UpdateHealth(ctx, project); err != nil {
		return fmt.Errorf("persist health: %w", err)
	}

	r.logger.Info("project health recomputed",
		zap.String("project_id", projectID),
		zap.Int("score", score),
		zap.String("health", string(health)))
	return nil
}

// Replan runs the AI replan pass: asks the oracle for a full plan, persists
// it alongside a fresh health score, and reconciles the immediate/this-week
// items against existing AI-generated open tasks.
func (r *Replanner) Replan(ctx context.Context, projectID string) error {
	project, err := r.projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	threads, err := r.threads.ListUnresolvedByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list project threads: %w", err)
	}

	clientName := ""
	if client, err := r.clients.GetByID(ctx, project.ClientID); err == nil {
		clientName = client.Name
	}

	input := classify.ReplanInput{
		ProjectName: project.Name,
		ClientName:  clientName,
		Threads:     make([]classify.ReplanThread, 0, len(threads)),
	}
	for i := range threads {
		t := &threads[i]
		input.Threads = append(input.Threads, classify.ReplanThread{
			Subject:  t.Subject,
			Status:   string(t.Status),
			Priority: string(t.Priority),
			Summary:  t.Summary,
		})
	}

	result := r.gateway.Replan(ctx, input)

	score, health := HealthScore(threads, r.now())
	project.HealthScore = score
	project.Health = health
	project.PlanSummary = result.Summary
	project.Risks = result.Risks
	project.Plan = result.Plan
	if err := r.projects.UpdatePlan(ctx, project); err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}

	if err := r.reconcileTasks(ctx, projectID, result.Plan); err != nil {
		return err
	}

	r.logger.Info("project replanned",
		zap.String("project_id", projectID),
		zap.Int("score", score),
		zap.Int("immediate", len(result.Plan.Immediate)),
		zap.Int("this_week", len(result.Plan.ThisWeek)))
	return nil
}

// reconcileTasks creates tasks for immediate/this-week plan items that do not
// already exist as open AI-generated tasks.
func (r *Replanner) reconcileTasks(ctx context.Context, projectID string, plan domain.ProjectPlan) error {
	existing, err := r.tasks.ListOpenAIGenerated(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list existing tasks: %w", err)
	}

	buckets := []struct {
		name  string
		items []domain.PlanItem
	}{
		{name: "immediate", items: plan.Immediate},
		{name: "this_week", items: plan.ThisWeek},
	}

	for _, bucket := range buckets {
		for _, item := range bucket.items {
			if item.Title == "" || r.hasSimilar(existing, item.Title) {
				continue
			}
			task := &domain.ProjectTask{
				ProjectID:   projectID,
				Title:       item.Title,
				Bucket:      bucket.name,
				Status:      domain.TaskStatusPending,
				AIGenerated: true,
			}
			if err := r.tasks.Create(ctx, task); err != nil {
				return fmt.Errorf("create task %q: %w", item.Title, err)
			}
			// New tasks join the duplicate check so one replan pass does not
			// create two tasks sharing a prefix.
			existing = append(existing, *task)
		}
	}
	return nil
}

func (r *Replanner) hasSimilar(existing []domain.ProjectTask, title string) bool {
	for i := range existing {
		if r.Similar(existing[i].Title, title) {
			return true
		}
	}
	return false
}

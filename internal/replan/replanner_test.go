package replan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/domain"
)

func openThread(priority domain.ThreadPriority, status domain.ThreadStatus, lastActivity time.Time) domain.Thread {
	return domain.Thread{Priority: priority, Status: status, LastActivityAt: lastActivity}
}

func TestHealthScoreEmptyProject(t *testing.T) {
	score, health := HealthScore(nil, time.Now())

	assert.Equal(t, 100, score)
	assert.Equal(t, domain.ProjectHealthOnTrack, health)
}

func TestHealthScoreCriticalAndAwaitingBacklog(t *testing.T) {
	now := time.Now()
	threads := []domain.Thread{
		openThread(domain.ThreadPriorityCritical, domain.ThreadStatusOpen, now),
		openThread(domain.ThreadPriorityNormal, domain.ThreadStatusAwaitingResponse, now),
		openThread(domain.ThreadPriorityNormal, domain.ThreadStatusAwaitingResponse, now),
		openThread(domain.ThreadPriorityNormal, domain.ThreadStatusAwaitingResponse, now),
	}

	score, health := HealthScore(threads, now)

	assert.Equal(t, 55, score, "100 - 30 critical - 15 backlog")
	assert.Equal(t, domain.ProjectHealthNeedsAttention, health)
}

func TestHealthScoreStaleThread(t *testing.T) {
	now := time.Now()
	threads := []domain.Thread{
		openThread(domain.ThreadPriorityNormal, domain.ThreadStatusOpen, now.Add(-4*24*time.Hour)),
	}

	score, health := HealthScore(threads, now)

	assert.Equal(t, 90, score)
	assert.Equal(t, domain.ProjectHealthOnTrack, health)
}

func TestHealthScoreLongWait(t *testing.T) {
	now := time.Now()
	threads := []domain.Thread{
		openThread(domain.ThreadPriorityNormal, domain.ThreadStatusAwaitingResponse, now.Add(-6*24*time.Hour)),
	}

	score, _ := HealthScore(threads, now)

	// 6 days awaiting: stale (-10) and long wait (-5).
	assert.Equal(t, 85, score)
}

func TestHealthScoreDeductionsAreCapped(t *testing.T) {
	now := time.Now()
	threads := []domain.Thread{
		openThread(domain.ThreadPriorityCritical, domain.ThreadStatusOpen, now.Add(-10*24*time.Hour)),
	}
	for i := 0; i < 10; i++ {
		threads = append(threads, openThread(domain.ThreadPriorityNormal, domain.ThreadStatusAwaitingResponse, now.Add(-10*24*time.Hour)))
	}

	score, health := HealthScore(threads, now)

	// 100 - 30 critical - 15 backlog - 30 stale cap - 20 long-wait cap.
	assert.Equal(t, 5, score)
	assert.Equal(t, domain.ProjectHealthAtRisk, health)
}

func TestHealthScoreIgnoresResolvedThreads(t *testing.T) {
	now := time.Now()
	threads := []domain.Thread{
		openThread(domain.ThreadPriorityCritical, domain.ThreadStatusResolved, now.Add(-30*24*time.Hour)),
	}

	score, health := HealthScore(threads, now)

	assert.Equal(t, 100, score)
	assert.Equal(t, domain.ProjectHealthOnTrack, health)
}

func TestPrefixTitleSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "shared 20-char prefix", a: "Fix login redirect on prod", b: "Fix login redirect on staging", want: true},
		{name: "case insensitive", a: "fix LOGIN redirect on prod", b: "Fix login redirect on prod", want: true},
		{name: "distinct", a: "Fix login redirect", b: "Ship invoice export", want: false},
		{name: "short titles compare whole", a: "Fix login", b: "Fix login", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrefixTitleSimilar(tt.a, tt.b))
		})
	}
}

type fakeTaskRepo struct {
	existing []domain.ProjectTask
	created  []domain.ProjectTask
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *domain.ProjectTask) error {
	task.ID = "task-" + task.Title
	f.created = append(f.created, *task)
	return nil
}

func (f *fakeTaskRepo) ListOpenAIGenerated(ctx context.Context, projectID string) ([]domain.ProjectTask, error) {
	return f.existing, nil
}

func TestReconcileSkipsPrefixDuplicates(t *testing.T) {
	tasks := &fakeTaskRepo{existing: []domain.ProjectTask{
		{Title: "Fix login redirect on prod", AIGenerated: true, Status: domain.TaskStatusPending},
	}}
	r := &Replanner{tasks: tasks, Similar: PrefixTitleSimilar, logger: zap.NewNop()}

	plan := domain.ProjectPlan{
		Immediate: []domain.PlanItem{
			{Title: "Fix login redirect on staging"}, // prefix collision with existing
			{Title: "Ship invoice export"},
		},
	}
	require.NoError(t, r.reconcileTasks(context.Background(), "p1", plan))

	require.Len(t, tasks.created, 1)
	assert.Equal(t, "Ship invoice export", tasks.created[0].Title)
	assert.Equal(t, "immediate", tasks.created[0].Bucket)
	assert.True(t, tasks.created[0].AIGenerated)
}

func TestReconcileDeduplicatesWithinOnePass(t *testing.T) {
	tasks := &fakeTaskRepo{}
	r := &Replanner{tasks: tasks, Similar: PrefixTitleSimilar, logger: zap.NewNop()}

	plan := domain.ProjectPlan{
		Immediate: []domain.PlanItem{{Title: "Update onboarding doc for Q3"}},
		ThisWeek:  []domain.PlanItem{{Title: "Update onboarding doc for Q4"}},
	}
	require.NoError(t, r.reconcileTasks(context.Background(), "p1", plan))

	assert.Len(t, tasks.created, 1)
}

func TestReconcileSkipsEmptyTitles(t *testing.T) {
	tasks := &fakeTaskRepo{}
	r := &Replanner{tasks: tasks, Similar: PrefixTitleSimilar, logger: zap.NewNop()}

	plan := domain.ProjectPlan{Immediate: []domain.PlanItem{{Title: ""}}}
	require.NoError(t, r.reconcileTasks(context.Background(), "p1", plan))

	assert.Empty(t, tasks.created)
}

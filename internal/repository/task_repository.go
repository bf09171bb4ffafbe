package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intake-service/internal/domain"
)

// TaskRepository encapsulates project task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.ProjectTask) error
	// ListOpenAIGenerated returns non-completed, AI-generated tasks for the
	// project; the replanner reconciles new plan items against these.
	ListOpenAIGenerated(ctx context.Context, projectID string) ([]domain.ProjectTask, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.ProjectTask) error {
	const query = `
        INSERT INTO project_tasks (project_id, title, bucket, status, ai_generated)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.ProjectID,
		task.Title,
		task.Bucket,
		task.Status,
		task.AIGenerated,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) ListOpenAIGenerated(ctx context.Context, projectID string) ([]domain.ProjectTask, error) {
	const query = `
        SELECT id, project_id, title, bucket, status, ai_generated, created_at, updated_at
        FROM project_tasks
        WHERE project_id=$1 AND ai_generated AND status <> $2
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, projectID, domain.TaskStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.ProjectTask{}
	for rows.Next() {
		var t domain.ProjectTask
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Bucket, &t.Status, &t.AIGenerated, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

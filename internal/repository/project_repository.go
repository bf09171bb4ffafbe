package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intake-service/internal/domain"
)

// ProjectRepository encapsulates project persistence.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListIDs(ctx context.Context) ([]string, error)
	// UpdateHealth writes only the replanner-owned fields.
	UpdateHealth(ctx context.Context, project *domain.Project) error
	// UpdatePlan writes the AI plan fields alongside health.
	UpdatePlan(ctx context.Context, project *domain.Project) error
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository instantiates repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	const query = `
        SELECT id, client_id, name, owner_user_id, health, health_score, plan_summary,
               risks, plan, created_at, updated_at
        FROM projects WHERE id=$1`
	var p domain.Project
	var risks, plan []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.ClientID, &p.Name, &p.OwnerID, &p.Health, &p.HealthScore,
		&p.PlanSummary, &risks, &plan, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(risks) > 0 {
		if err := json.Unmarshal(risks, &p.Risks); err != nil {
			return nil, err
		}
	}
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &p.Plan); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (r *projectRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *projectRepository) UpdateHealth(ctx context.Context, project *domain.Project) error {
	const query = `
        UPDATE projects SET health=$1, health_score=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, project.Health, project.HealthScore, project.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *projectRepository) UpdatePlan(ctx context.Context, project *domain.Project) error {
	risks, err := json.Marshal(project.Risks)
	if err != nil {
		return err
	}
	plan, err := json.Marshal(project.Plan)
	if err != nil {
		return err
	}
	const query = `
        UPDATE projects SET health=$1, health_score=$2, plan_summary=$3, risks=$4, plan=$5,
            updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		project.Health, project.HealthScore, project.PlanSummary, risks, plan, project.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

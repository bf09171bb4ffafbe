package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intake-service/internal/domain"
)

// AssignmentRuleRepository encapsulates routing rule persistence.
type AssignmentRuleRepository interface {
	// ListActive returns active rules ordered by descending priority so the
	// engine can take the first match.
	ListActive(ctx context.Context, ruleType domain.AssignmentRuleType) ([]domain.AssignmentRule, error)
}

type assignmentRuleRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRuleRepository instantiates repository.
func NewAssignmentRuleRepository(pool *pgxpool.Pool) AssignmentRuleRepository {
	return &assignmentRuleRepository{pool: pool}
}

func (r *assignmentRuleRepository) ListActive(ctx context.Context, ruleType domain.AssignmentRuleType) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, type, conditions, assignee_user_id, priority, is_active, created_at, updated_at
        FROM assignment_rules
        WHERE is_active AND type=$1
        ORDER BY priority DESC, id`
	rows, err := r.pool.Query(ctx, query, ruleType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []domain.AssignmentRule{}
	for rows.Next() {
		var rule domain.AssignmentRule
		if err := rows.Scan(&rule.ID, &rule.Type, &rule.Conditions, &rule.AssigneeID, &rule.Priority, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

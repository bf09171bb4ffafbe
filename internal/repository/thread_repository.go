package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/intake-service/internal/domain"
)

// ThreadFilter captures triage-view search parameters.
type ThreadFilter struct {
	ClientID     *string
	ProjectID    *string
	AssignedToID *string
	Statuses     []domain.ThreadStatus
	Priorities   []domain.ThreadPriority
	NeedsTriage  *bool
	SLABreached  *bool
	Limit        int
	Offset       int
}

// ThreadRepository encapsulates thread persistence.
type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.Thread) error
	Update(ctx context.Context, thread *domain.Thread) error
	GetByID(ctx context.Context, id string) (*domain.Thread, error)
	ListUnresolved(ctx context.Context) ([]domain.Thread, error)
	ListUnresolvedByProject(ctx context.Context, projectID string) ([]domain.Thread, error)
	ListWithFilter(ctx context.Context, filter ThreadFilter) ([]domain.Thread, error)
	// OpenCountsByAssignee returns non-RESOLVED thread counts keyed by
	// assignee id. Users with no open threads are absent from the map.
	OpenCountsByAssignee(ctx context.Context) (map[string]int, error)
}

type threadRepository struct {
	pool *pgxpool.Pool
}

// NewThreadRepository instantiates repository.
func NewThreadRepository(pool *pgxpool.Pool) ThreadRepository {
	return &threadRepository{pool: pool}
}

const threadColumns = `id, client_id, project_id, subject, status, priority, intent, sentiment,
        summary, urgency_reason, draft_response, match_confidence, needs_triage, sla_breached,
        escalation_tier, assigned_to_user_id, last_activity_at, created_at, updated_at`

func (r *threadRepository) Create(ctx context.Context, thread *domain.Thread) error {
	const query = `
        INSERT INTO threads (client_id, project_id, subject, status, priority, intent, sentiment,
            summary, urgency_reason, draft_response, match_confidence, needs_triage, sla_breached,
            escalation_tier, assigned_to_user_id, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		thread.ClientID,
		thread.ProjectID,
		thread.Subject,
		thread.Status,
		thread.Priority,
		thread.Intent,
		thread.Sentiment,
		thread.Summary,
		thread.UrgencyReason,
		thread.DraftResponse,
		thread.MatchConfidence,
		thread.NeedsTriage,
		thread.SLABreached,
		thread.EscalationTier,
		thread.AssignedToID,
		thread.LastActivityAt,
	).Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt)
}

func (r *threadRepository) Update(ctx context.Context, thread *domain.Thread) error {
	const query = `
        UPDATE threads SET client_id=$1, project_id=$2, subject=$3, status=$4, priority=$5,
            intent=$6, sentiment=$7, summary=$8, urgency_reason=$9, draft_response=$10,
            match_confidence=$11, needs_triage=$12, sla_breached=$13, escalation_tier=$14,
            assigned_to_user_id=$15, last_activity_at=$16, updated_at=NOW()
        WHERE id=$17`
	cmd, err := r.pool.Exec(ctx, query,
		thread.ClientID,
		thread.ProjectID,
		thread.Subject,
		thread.Status,
		thread.Priority,
		thread.Intent,
		thread.Sentiment,
		thread.Summary,
		thread.UrgencyReason,
		thread.DraftResponse,
		thread.MatchConfidence,
		thread.NeedsTriage,
		thread.SLABreached,
		thread.EscalationTier,
		thread.AssignedToID,
		thread.LastActivityAt,
		thread.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *threadRepository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	query := fmt.Sprintf(`SELECT %s FROM threads WHERE id=$1`, threadColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanThread(row)
}

func (r *threadRepository) ListUnresolved(ctx context.Context) ([]domain.Thread, error) {
	query := fmt.Sprintf(`SELECT %s FROM threads WHERE status <> $1 ORDER BY last_activity_at ASC`, threadColumns)
	rows, err := r.pool.Query(ctx, query, domain.ThreadStatusResolved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreads(rows)
}

func (r *threadRepository) ListUnresolvedByProject(ctx context.Context, projectID string) ([]domain.Thread, error) {
	query := fmt.Sprintf(`SELECT %s FROM threads WHERE project_id=$1 AND status <> $2 ORDER BY last_activity_at ASC`, threadColumns)
	rows, err := r.pool.Query(ctx, query, projectID, domain.ThreadStatusResolved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreads(rows)
}

func (r *threadRepository) ListWithFilter(ctx context.Context, filter ThreadFilter) ([]domain.Thread, error) {
	base := fmt.Sprintf(`SELECT %s FROM threads`, threadColumns)
	clauses := []string{"1=1"}
	args := []any{}

	addClause := func(cond string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}

	if filter.ClientID != nil {
		addClause("client_id=$%d", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		addClause("project_id=$%d", *filter.ProjectID)
	}
	if filter.AssignedToID != nil {
		addClause("assigned_to_user_id=$%d", *filter.AssignedToID)
	}
	if len(filter.Statuses) > 0 {
		addClause("status = ANY($%d)", filter.Statuses)
	}
	if len(filter.Priorities) > 0 {
		addClause("priority = ANY($%d)", filter.Priorities)
	}
	if filter.NeedsTriage != nil {
		addClause("needs_triage=$%d", *filter.NeedsTriage)
	}
	if filter.SLABreached != nil {
		addClause("sla_breached=$%d", *filter.SLABreached)
	}

	query := base + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY last_activity_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreads(rows)
}

func (r *threadRepository) OpenCountsByAssignee(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT assigned_to_user_id, COUNT(*) FROM threads
        WHERE assigned_to_user_id IS NOT NULL AND status <> $1
        GROUP BY assigned_to_user_id`
	rows, err := r.pool.Query(ctx, query, domain.ThreadStatusResolved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

func scanThread(row pgx.Row) (*domain.Thread, error) {
	var thread domain.Thread
	if err := row.Scan(
		&thread.ID,
		&thread.ClientID,
		&thread.ProjectID,
		&thread.Subject,
		&thread.Status,
		&thread.Priority,
		&thread.Intent,
		&thread.Sentiment,
		&thread.Summary,
		&thread.UrgencyReason,
		&thread.DraftResponse,
		&thread.MatchConfidence,
		&thread.NeedsTriage,
		&thread.SLABreached,
		&thread.EscalationTier,
		&thread.AssignedToID,
		&thread.LastActivityAt,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &thread, nil
}

func scanThreads(rows pgx.Rows) ([]domain.Thread, error) {
	threads := []domain.Thread{}
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, *thread)
	}
	return threads, rows.Err()
}

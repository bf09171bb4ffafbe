package domain

import "time"

// ProjectHealth enumerates derived project health states.
type ProjectHealth string

const (
	ProjectHealthOnTrack        ProjectHealth = "ON_TRACK"
	ProjectHealthNeedsAttention ProjectHealth = "NEEDS_ATTENTION"
	ProjectHealthAtRisk         ProjectHealth = "AT_RISK"
)

// PlanItem is one entry in a project plan bucket.
type PlanItem struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ProjectPlan is the structured plan produced by the replanner.
type ProjectPlan struct {
	Immediate       []PlanItem `json:"immediate"`
	ThisWeek        []PlanItem `json:"this_week"`
	Upcoming        []PlanItem `json:"upcoming"`
	WaitingOnClient []PlanItem `json:"waiting_on_client"`
	WaitingOnUs     []PlanItem `json:"waiting_on_us"`
}

// Project groups threads for one engagement. Health and HealthScore are
// derived from the project's non-resolved threads at replan time and are not
// independently mutable.
type Project struct {
	ID          string
	ClientID    string
	Name        string
	OwnerID     *string
	Health      ProjectHealth
	HealthScore int
	PlanSummary string
	Risks       []string
	Plan        ProjectPlan
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus enumerates project task states.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// ProjectTask is a single actionable item on a project plan.
type ProjectTask struct {
	ID          string
	ProjectID   string
	Title       string
	Bucket      string
	Status      TaskStatus
	AIGenerated bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

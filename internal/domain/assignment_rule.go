package domain

import "time"

// AssignmentRuleType enumerates rule kinds consulted by the assignment engine.
type AssignmentRuleType string

const (
	AssignmentRuleTypeClient AssignmentRuleType = "CLIENT"
	AssignmentRuleTypeSkill  AssignmentRuleType = "SKILL"
)

// AssignmentRule routes threads to a configured assignee when its conditions
// match. Conditions is an opaque serialized predicate; evaluation is behind
// the assignment package's RulePredicate so the representation can be
// hardened without touching engine control flow.
type AssignmentRule struct {
	ID         string
	Type       AssignmentRuleType
	Conditions string
	AssigneeID string
	Priority   int
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

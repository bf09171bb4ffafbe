package domain

import "time"

// ThreadStatus enumerates lifecycle states for conversation threads.
type ThreadStatus string

const (
	ThreadStatusOpen             ThreadStatus = "OPEN"
	ThreadStatusAwaitingResponse ThreadStatus = "AWAITING_RESPONSE"
	ThreadStatusSnoozed          ThreadStatus = "SNOOZED"
	ThreadStatusResolved         ThreadStatus = "RESOLVED"
)

// ThreadPriority enumerates SLA urgency.
type ThreadPriority string

const (
	ThreadPriorityCritical ThreadPriority = "CRITICAL"
	ThreadPriorityHigh     ThreadPriority = "HIGH"
	ThreadPriorityNormal   ThreadPriority = "NORMAL"
	ThreadPriorityLow      ThreadPriority = "LOW"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p ThreadPriority) bool {
	switch p {
	case ThreadPriorityCritical, ThreadPriorityHigh, ThreadPriorityNormal, ThreadPriorityLow:
		return true
	}
	return false
}

// EscalationTier tracks which elapsed-time tier has already fired for a thread.
// BREACHED is tracked separately via SLABreached so it stays sticky across
// activity resets.
type EscalationTier string

const (
	EscalationTierNormal    EscalationTier = "NORMAL"
	EscalationTierWarning   EscalationTier = "WARNING"
	EscalationTierEscalated EscalationTier = "ESCALATED"
)

// Thread is the aggregate for an ongoing client conversation.
type Thread struct {
	ID              string
	ClientID        *string
	ProjectID       *string
	Subject         string
	Status          ThreadStatus
	Priority        ThreadPriority
	Intent          string
	Sentiment       string
	Summary         string
	UrgencyReason   string
	DraftResponse   *string
	MatchConfidence float64
	NeedsTriage     bool
	SLABreached     bool
	EscalationTier  EscalationTier
	AssignedToID    *string
	LastActivityAt  time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Open reports whether the thread still counts against an assignee's capacity.
func (t *Thread) Open() bool {
	return t.Status != ThreadStatusResolved
}

// Touch advances LastActivityAt. The field is monotonically non-decreasing,
// so an earlier timestamp is ignored.
func (t *Thread) Touch(at time.Time) {
	if at.After(t.LastActivityAt) {
		t.LastActivityAt = at
	}
}

package dto

import (
	"time"

	"github.com/spec-kit/intake-service/internal/domain"
)

// ThreadSummary response.
type ThreadSummary struct {
	ID              string                `json:"id"`
	ClientID        *string               `json:"client_id"`
	ProjectID       *string               `json:"project_id"`
	Subject         string                `json:"subject"`
	Status          domain.ThreadStatus   `json:"status"`
	Priority        domain.ThreadPriority `json:"priority"`
	Intent          string                `json:"intent"`
	Sentiment       string                `json:"sentiment"`
	Summary         string                `json:"summary"`
	NeedsTriage     bool                  `json:"needs_triage"`
	SLABreached     bool                  `json:"sla_breached"`
	EscalationTier  domain.EscalationTier `json:"escalation_tier"`
	MatchConfidence float64               `json:"match_confidence"`
	AssignedToID    *string               `json:"assigned_to_user_id"`
	LastActivityAt  time.Time             `json:"last_activity_at"`
	CreatedAt       time.Time             `json:"created_at"`
}

// ThreadDetailResponse provides full thread info including its messages.
type ThreadDetailResponse struct {
	ThreadSummary
	UrgencyReason string            `json:"urgency_reason"`
	DraftResponse *string           `json:"draft_response"`
	Messages      []MessageResponse `json:"messages"`
}

// MessageResponse represents one email within a thread.
type MessageResponse struct {
	ID          string                  `json:"id"`
	Direction   domain.MessageDirection `json:"direction"`
	SenderEmail string                  `json:"sender_email"`
	SenderName  string                  `json:"sender_name"`
	Subject     string                  `json:"subject"`
	BodyText    string                  `json:"body_text"`
	ReceivedAt  time.Time               `json:"received_at"`
}

// ThreadListResponse wraps a page of threads.
type ThreadListResponse struct {
	Threads []ThreadSummary `json:"threads"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// NewThreadSummary maps a domain thread.
func NewThreadSummary(t *domain.Thread) ThreadSummary {
	return ThreadSummary{
		ID:              t.ID,
		ClientID:        t.ClientID,
		ProjectID:       t.ProjectID,
		Subject:         t.Subject,
		Status:          t.Status,
		Priority:        t.Priority,
		Intent:          t.Intent,
		Sentiment:       t.Sentiment,
		Summary:         t.Summary,
		NeedsTriage:     t.NeedsTriage,
		SLABreached:     t.SLABreached,
		EscalationTier:  t.EscalationTier,
		MatchConfidence: t.MatchConfidence,
		AssignedToID:    t.AssignedToID,
		LastActivityAt:  t.LastActivityAt,
		CreatedAt:       t.CreatedAt,
	}
}

// NewThreadDetail maps a thread plus its messages.
func NewThreadDetail(t *domain.Thread, messages []domain.Message) ThreadDetailResponse {
	resp := ThreadDetailResponse{
		ThreadSummary: NewThreadSummary(t),
		UrgencyReason: t.UrgencyReason,
		DraftResponse: t.DraftResponse,
		Messages:      make([]MessageResponse, 0, len(messages)),
	}
	for i := range messages {
		m := &messages[i]
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:          m.ID,
			Direction:   m.Direction,
			SenderEmail: m.SenderEmail,
			SenderName:  m.SenderName,
			Subject:     m.Subject,
			BodyText:    m.BodyText,
			ReceivedAt:  m.ReceivedAt,
		})
	}
	return resp
}

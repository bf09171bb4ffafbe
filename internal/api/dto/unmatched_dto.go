package dto

import (
	"time"

	"github.com/spec-kit/intake-service/internal/domain"
)

// UnmatchedEmailResponse represents a parked inbound email.
type UnmatchedEmailResponse struct {
	ID          string                      `json:"id"`
	SenderEmail string                      `json:"sender_email"`
	SenderName  string                      `json:"sender_name"`
	Subject     string                      `json:"subject"`
	BodyText    string                      `json:"body_text"`
	Status      domain.UnmatchedEmailStatus `json:"status"`
	Candidates  []domain.MatchCandidate     `json:"candidates"`
	ReceivedAt  time.Time                   `json:"received_at"`
}

// UnmatchedListResponse wraps a page of unmatched emails.
type UnmatchedListResponse struct {
	Emails []UnmatchedEmailResponse `json:"emails"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// ResolveUnmatchedRequest assigns a parked email to a client.
type ResolveUnmatchedRequest struct {
	ClientID string `json:"client_id"`
}

// NewUnmatchedEmailResponse maps a domain unmatched email.
func NewUnmatchedEmailResponse(e *domain.UnmatchedEmail) UnmatchedEmailResponse {
	candidates := e.Candidates
	if candidates == nil {
		candidates = []domain.MatchCandidate{}
	}
	return UnmatchedEmailResponse{
		ID:          e.ID,
		SenderEmail: e.SenderEmail,
		SenderName:  e.SenderName,
		Subject:     e.Subject,
		BodyText:    e.BodyText,
		Status:      e.Status,
		Candidates:  candidates,
		ReceivedAt:  e.ReceivedAt,
	}
}

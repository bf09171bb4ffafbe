package domain

import "time"

// UnmatchedEmailStatus enumerates states for parked inbound mail.
type UnmatchedEmailStatus string

const (
	UnmatchedEmailStatusPending  UnmatchedEmailStatus = "PENDING"
	UnmatchedEmailStatusResolved UnmatchedEmailStatus = "RESOLVED"
	UnmatchedEmailStatusIgnored  UnmatchedEmailStatus = "IGNORED"
)

// MatchCandidate is a suggested client match attached to an unmatched email
// for later manual resolution.
type MatchCandidate struct {
	ClientID   string  `json:"client_id"`
	ClientName string  `json:"client_name"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// UnmatchedEmail holds an inbound message the matcher could not place with
// enough confidence. Terminal once resolved or ignored.
type UnmatchedEmail struct {
	ID          string
	SenderEmail string
	SenderName  string
	Subject     string
	BodyText    string
	Status      UnmatchedEmailStatus
	Candidates  []MatchCandidate
	ReceivedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

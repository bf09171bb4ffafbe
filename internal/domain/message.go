package domain

import "time"

// MessageDirection distinguishes inbound client mail from outbound replies.
type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "INBOUND"
	MessageDirectionOutbound MessageDirection = "OUTBOUND"
)

// Message is a single email within a thread. Messages are append-only and
// immutable once created. Fingerprint is the content hash of the inbound
// email the message was created from; empty for outbound replies.
type Message struct {
	ID          string
	ThreadID    string
	Direction   MessageDirection
	SenderEmail string
	SenderName  string
	Subject     string
	BodyText    string
	BodyHTML    *string
	ReceivedAt  time.Time
	CreatedAt   time.Time
	Fingerprint string
}

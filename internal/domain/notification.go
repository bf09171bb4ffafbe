package domain

import "time"

// NotificationType enumerates notification kinds emitted by the pipeline.
type NotificationType string

const (
	NotificationTypeSLAWarning     NotificationType = "SLA_WARNING"
	NotificationTypeEscalation     NotificationType = "ESCALATION"
	NotificationTypeSLABreach      NotificationType = "SLA_BREACH"
	NotificationTypeThreadAssigned NotificationType = "THREAD_ASSIGNED"
	NotificationTypeNeedsTriage    NotificationType = "NEEDS_TRIAGE"
)

// Notification is the durable record behind a live push. A missed live
// delivery still leaves this row readable later.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]any
	Read      bool
	CreatedAt time.Time
}

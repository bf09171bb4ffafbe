package domain

import "time"

// Client is an account the business works with. Contact emails are the
// addresses the matching stage compares inbound senders against.
type Client struct {
	ID            string
	Name          string
	Email         string
	ContactEmails []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

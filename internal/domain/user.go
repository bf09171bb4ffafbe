package domain

import "time"

// UserRole enumerates internal operator roles.
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleTeam  UserRole = "TEAM"
)

// User models a team member who can own threads.
// Capacity is a percentage of full load; the assignment engine derives the
// maximum number of concurrently open threads from it.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      UserRole
	IsActive  bool
	Capacity  int
	Skills    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxOpenThreads returns the open-thread ceiling implied by Capacity:
// floor(capacity/100 * 10).
func (u *User) MaxOpenThreads() int {
	return u.Capacity / 10
}

// HasSkill reports whether the user lists the given skill.
func (u *User) HasSkill(skill string) bool {
	for _, s := range u.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// Package assignment selects a human owner for a thread. The decision is a
// pure function over a snapshot of users, rules and open-thread counts, so
// identical snapshots always produce identical results.
package assignment

import (
	"sort"
	"strings"

	"github.com/spec-kit/intake-service/internal/domain"
)

// Rule names, in evaluation order. The first rule whose precondition holds
// and whose candidate has capacity wins.
const (
	RuleCriticalEscalation = "CRITICAL_ESCALATION"
	RuleProjectOwner       = "PROJECT_OWNER"
	RuleClientRule         = "CLIENT_RULE"
	RuleSkillMatch         = "SKILL_MATCH"
	RuleLoadBalance        = "LOAD_BALANCE"
	RuleEscalation         = "ESCALATION"
	RuleNone               = "NONE"
)

// intentSkills maps an analyzed intent to the skills that qualify a TEAM
// member to own it.
var intentSkills = map[string][]string{
	"bug_report":      {"development", "technical", "debugging"},
	"urgent_issue":    {"development", "technical", "admin"},
	"feature_request": {"development", "product"},
	"question":        {"support", "communication"},
	"billing":         {"billing", "admin"},
	"feedback":        {"support", "communication"},
	"scope_change":    {"product", "management"},
	"general":         {"support"},
}

// RulePredicate evaluates whether an assignment rule matches a thread. The
// default containment check over the serialized conditions is approximate;
// swapping the predicate hardens matching without touching engine control
// flow.
type RulePredicate interface {
	Matches(rule domain.AssignmentRule, thread *domain.Thread) bool
}

// ContainsPredicate matches a CLIENT rule when the thread's client id appears
// inside the rule's serialized conditions.
type ContainsPredicate struct{}

// Matches implements RulePredicate.
func (ContainsPredicate) Matches(rule domain.AssignmentRule, thread *domain.Thread) bool {
	if thread.ClientID == nil || *thread.ClientID == "" {
		return false
	}
	return strings.Contains(rule.Conditions, *thread.ClientID)
}

// Snapshot is the frozen world state a decision is computed from.
type Snapshot struct {
	Users          []domain.User
	OpenCounts     map[string]int
	ClientRules    []domain.AssignmentRule
	ProjectOwnerID *string
}

// Decision is the outcome of one assignment evaluation.
type Decision struct {
	UserID *string
	Rule   string
	Reason string
}

// Engine holds the pluggable pieces of the decision chain.
type Engine struct {
	predicate RulePredicate
}

// NewEngine constructs an engine with the default rule predicate.
func NewEngine() *Engine {
	return &Engine{predicate: ContainsPredicate{}}
}

// NewEngineWithPredicate constructs an engine with a custom rule predicate.
func NewEngineWithPredicate(predicate RulePredicate) *Engine {
	return &Engine{predicate: predicate}
}

// Decide walks the rule chain and returns the first winning candidate.
// Inactive users never win; capacity is ignored only by the CRITICAL and
// final ESCALATION rules. A nil UserID with rule NONE means no admin exists.
func (e *Engine) Decide(thread *domain.Thread, snap Snapshot) Decision {
	users := stableUsers(snap.Users)

	// 1. CRITICAL threads go straight to an admin, capacity ignored.
	if thread.Priority == domain.ThreadPriorityCritical {
		if admin := firstAdmin(users); admin != nil {
			return Decision{UserID: &admin.ID, Rule: RuleCriticalEscalation, Reason: "critical priority routed to admin"}
		}
	}

	// 2. Project default owner, if active with capacity.
	if snap.ProjectOwnerID != nil {
		if owner := findUser(users, *snap.ProjectOwnerID); owner != nil && hasCapacity(owner, snap.OpenCounts) {
			return Decision{UserID: &owner.ID, Rule: RuleProjectOwner, Reason: "project default owner"}
		}
	}

	// 3. Client routing rules, highest priority first.
	for _, rule := range sortedRules(snap.ClientRules) {
		if !rule.IsActive || rule.Type != domain.AssignmentRuleTypeClient {
			continue
		}
		if !e.predicate.Matches(rule, thread) {
			continue
		}
		if assignee := findUser(users, rule.AssigneeID); assignee != nil && hasCapacity(assignee, snap.OpenCounts) {
			return Decision{UserID: &assignee.ID, Rule: RuleClientRule, Reason: "client rule " + rule.ID}
		}
	}

	// 4. Skill match: least-loaded TEAM member whose skills intersect the
	// intent's required set.
	if required, ok := intentSkills[thread.Intent]; ok {
		if best := leastLoaded(users, snap.OpenCounts, func(u *domain.User) bool {
			return u.Role == domain.UserRoleTeam && skillsIntersect(u, required) && hasCapacity(u, snap.OpenCounts)
		}); best != nil {
			return Decision{UserID: &best.ID, Rule: RuleSkillMatch, Reason: "skill match for intent " + thread.Intent}
		}
	}

	// 5. Load balance across everyone with capacity.
	if best := leastLoaded(users, snap.OpenCounts, func(u *domain.User) bool {
		return hasCapacity(u, snap.OpenCounts)
	}); best != nil {
		return Decision{UserID: &best.ID, Rule: RuleLoadBalance, Reason: "least loaded user"}
	}

	// 6. Everyone is saturated: fall through to an admin, capacity ignored.
	if admin := firstAdmin(users); admin != nil {
		return Decision{UserID: &admin.ID, Rule: RuleEscalation, Reason: "no capacity anywhere; escalated to admin"}
	}

	// 7. No admin exists; leave unassigned for the triage view.
	return Decision{Rule: RuleNone, Reason: "no eligible user"}
}

// stableUsers filters to active users and fixes an ordering so ties break the
// same way on every evaluation.
func stableUsers(users []domain.User) []domain.User {
	active := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.IsActive {
			active = append(active, u)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

func sortedRules(rules []domain.AssignmentRule) []domain.AssignmentRule {
	sorted := append([]domain.AssignmentRule{}, rules...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func firstAdmin(users []domain.User) *domain.User {
	for i := range users {
		if users[i].Role == domain.UserRoleAdmin {
			return &users[i]
		}
	}
	return nil
}

func findUser(users []domain.User, id string) *domain.User {
	for i := range users {
		if users[i].ID == id {
			return &users[i]
		}
	}
	return nil
}

func hasCapacity(user *domain.User, openCounts map[string]int) bool {
	return openCounts[user.ID] < user.MaxOpenThreads()
}

func skillsIntersect(user *domain.User, required []string) bool {
	for _, skill := range required {
		if user.HasSkill(skill) {
			return true
		}
	}
	return false
}

// leastLoaded returns the eligible user with the fewest open threads; users
// are pre-sorted so equal loads resolve to the lowest id.
func leastLoaded(users []domain.User, openCounts map[string]int, eligible func(*domain.User) bool) *domain.User {
	var best *domain.User
	bestCount := 0
	for i := range users {
		u := &users[i]
		if !eligible(u) {
			continue
		}
		count := openCounts[u.ID]
		if best == nil || count < bestCount {
			best = u
			bestCount = count
		}
	}
	return best
}

package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/intake-service/internal/domain"
)

func user(id string, role domain.UserRole, capacity int, skills ...string) domain.User {
	return domain.User{ID: id, Name: id, Role: role, IsActive: true, Capacity: capacity, Skills: skills}
}

func thread(priority domain.ThreadPriority, intent string) *domain.Thread {
	return &domain.Thread{ID: "t1", Priority: priority, Intent: intent, Status: domain.ThreadStatusOpen}
}

func strPtr(s string) *string { return &s }

func TestCriticalGoesToAdminIgnoringCapacity(t *testing.T) {
	admin := user("admin-1", domain.UserRoleAdmin, 100)
	snap := Snapshot{
		Users:      []domain.User{admin},
		OpenCounts: map[string]int{"admin-1": 50},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityCritical, "urgent_issue"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "admin-1", *decision.UserID)
	assert.Equal(t, RuleCriticalEscalation, decision.Rule)
}

func TestProjectOwnerWinsWithCapacity(t *testing.T) {
	owner := user("owner-1", domain.UserRoleTeam, 100, "development")
	other := user("team-2", domain.UserRoleTeam, 100, "development")
	snap := Snapshot{
		Users:          []domain.User{owner, other},
		OpenCounts:     map[string]int{},
		ProjectOwnerID: strPtr("owner-1"),
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "bug_report"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "owner-1", *decision.UserID)
	assert.Equal(t, RuleProjectOwner, decision.Rule)
}

func TestProjectOwnerSkippedWhenSaturated(t *testing.T) {
	owner := user("owner-1", domain.UserRoleTeam, 50) // max 5 open
	dev := user("team-2", domain.UserRoleTeam, 100, "development")
	snap := Snapshot{
		Users:          []domain.User{owner, dev},
		OpenCounts:     map[string]int{"owner-1": 5},
		ProjectOwnerID: strPtr("owner-1"),
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "bug_report"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "team-2", *decision.UserID)
	assert.Equal(t, RuleSkillMatch, decision.Rule)
}

func TestClientRuleRoutesToConfiguredAssignee(t *testing.T) {
	designated := user("team-9", domain.UserRoleTeam, 100)
	other := user("team-1", domain.UserRoleTeam, 100, "development")
	th := thread(domain.ThreadPriorityNormal, "bug_report")
	th.ClientID = strPtr("client-42")
	snap := Snapshot{
		Users:      []domain.User{designated, other},
		OpenCounts: map[string]int{},
		ClientRules: []domain.AssignmentRule{{
			ID:         "r1",
			Type:       domain.AssignmentRuleTypeClient,
			Conditions: `{"client_id":"client-42"}`,
			AssigneeID: "team-9",
			IsActive:   true,
		}},
	}

	decision := NewEngine().Decide(th, snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "team-9", *decision.UserID)
	assert.Equal(t, RuleClientRule, decision.Rule)
}

func TestClientRulePriorityOrdering(t *testing.T) {
	th := thread(domain.ThreadPriorityNormal, "general")
	th.ClientID = strPtr("client-42")
	snap := Snapshot{
		Users: []domain.User{
			user("team-1", domain.UserRoleTeam, 100),
			user("team-2", domain.UserRoleTeam, 100),
		},
		OpenCounts: map[string]int{},
		ClientRules: []domain.AssignmentRule{
			{ID: "low", Type: domain.AssignmentRuleTypeClient, Conditions: "client-42", AssigneeID: "team-1", Priority: 1, IsActive: true},
			{ID: "high", Type: domain.AssignmentRuleTypeClient, Conditions: "client-42", AssigneeID: "team-2", Priority: 10, IsActive: true},
		},
	}

	decision := NewEngine().Decide(th, snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "team-2", *decision.UserID, "higher rule priority wins")
}

func TestSkillMatchPicksLeastLoaded(t *testing.T) {
	busy := user("team-1", domain.UserRoleTeam, 100, "debugging")
	idle := user("team-2", domain.UserRoleTeam, 100, "technical")
	unskilled := user("team-3", domain.UserRoleTeam, 100, "billing")
	snap := Snapshot{
		Users:      []domain.User{busy, idle, unskilled},
		OpenCounts: map[string]int{"team-1": 4, "team-2": 1},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "bug_report"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "team-2", *decision.UserID)
	assert.Equal(t, RuleSkillMatch, decision.Rule)
}

func TestLoadBalanceWhenNoSkillMatches(t *testing.T) {
	a := user("team-1", domain.UserRoleTeam, 100, "billing")
	b := user("team-2", domain.UserRoleTeam, 100, "billing")
	snap := Snapshot{
		Users:      []domain.User{a, b},
		OpenCounts: map[string]int{"team-1": 3, "team-2": 1},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "bug_report"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "team-2", *decision.UserID)
	assert.Equal(t, RuleLoadBalance, decision.Rule)
}

func TestEscalationFallbackIgnoresCapacity(t *testing.T) {
	admin := user("admin-1", domain.UserRoleAdmin, 10) // max 1
	snap := Snapshot{
		Users:      []domain.User{admin},
		OpenCounts: map[string]int{"admin-1": 1},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "general"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "admin-1", *decision.UserID)
	assert.Equal(t, RuleEscalation, decision.Rule)
}

func TestNoAdminMeansUnassigned(t *testing.T) {
	saturated := user("team-1", domain.UserRoleTeam, 10)
	snap := Snapshot{
		Users:      []domain.User{saturated},
		OpenCounts: map[string]int{"team-1": 1},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "general"), snap)

	assert.Nil(t, decision.UserID)
	assert.Equal(t, RuleNone, decision.Rule)
}

func TestInactiveUsersNeverWin(t *testing.T) {
	inactive := domain.User{ID: "team-1", Role: domain.UserRoleTeam, IsActive: false, Capacity: 100, Skills: []string{"development"}}
	admin := user("admin-1", domain.UserRoleAdmin, 100)
	snap := Snapshot{
		Users:      []domain.User{inactive, admin},
		OpenCounts: map[string]int{},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityNormal, "bug_report"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "admin-1", *decision.UserID)
}

func TestDecideIsDeterministic(t *testing.T) {
	snap := Snapshot{
		Users: []domain.User{
			user("team-b", domain.UserRoleTeam, 100, "support"),
			user("team-a", domain.UserRoleTeam, 100, "support"),
		},
		OpenCounts: map[string]int{},
	}
	th := thread(domain.ThreadPriorityNormal, "question")
	engine := NewEngine()

	first := engine.Decide(th, snap)
	second := engine.Decide(th, snap)

	require.NotNil(t, first.UserID)
	require.NotNil(t, second.UserID)
	assert.Equal(t, *first.UserID, *second.UserID)
	assert.Equal(t, "team-a", *first.UserID, "ties break by stable id order")
}

// Covers the end-to-end shape: a confident match with urgent_issue intent, no
// project owner and no client rule lands on the admin pool only when no TEAM
// member holds an intersecting skill.
func TestUrgentIssueReachesAdminWhenNoTeamSkillIntersects(t *testing.T) {
	admin := user("admin-1", domain.UserRoleAdmin, 10) // saturated
	writer := user("team-1", domain.UserRoleTeam, 10, "copywriting")
	snap := Snapshot{
		Users:      []domain.User{admin, writer},
		OpenCounts: map[string]int{"admin-1": 1, "team-1": 1},
	}

	decision := NewEngine().Decide(thread(domain.ThreadPriorityHigh, "urgent_issue"), snap)

	require.NotNil(t, decision.UserID)
	assert.Equal(t, "admin-1", *decision.UserID)
	assert.Equal(t, RuleEscalation, decision.Rule)
}

func TestCapacityBoundaryIsStrict(t *testing.T) {
	// capacity 30 -> max 3 open threads; a count of 3 means full.
	u := user("team-1", domain.UserRoleTeam, 30)

	assert.True(t, hasCapacity(&u, map[string]int{"team-1": 2}))
	assert.False(t, hasCapacity(&u, map[string]int{"team-1": 3}))
}

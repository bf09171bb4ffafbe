package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/intake-service/internal/domain"
)

func TestRebalanceFlagsOverloadedAndTargets(t *testing.T) {
	snap := Snapshot{
		Users: []domain.User{
			user("busy", domain.UserRoleTeam, 100),   // 10 max
			user("spare", domain.UserRoleTeam, 100),  // 10 max
			user("middle", domain.UserRoleTeam, 100), // 10 max
		},
		OpenCounts: map[string]int{"busy": 10, "spare": 2, "middle": 8},
	}

	report := Rebalance(snap)

	require.Len(t, report.Overloaded, 1)
	assert.Equal(t, "busy", report.Overloaded[0].UserID)
	assert.Equal(t, 100, report.Overloaded[0].Utilization)

	require.Len(t, report.Targets, 1)
	assert.Equal(t, "spare", report.Targets[0].UserID)

	// 80% sits between the thresholds: neither flagged nor suggested.
	for _, load := range append(report.Overloaded, report.Targets...) {
		assert.NotEqual(t, "middle", load.UserID)
	}
}

func TestRebalanceSkipsZeroCapacityUsers(t *testing.T) {
	snap := Snapshot{
		Users:      []domain.User{user("frozen", domain.UserRoleTeam, 0)},
		OpenCounts: map[string]int{},
	}

	report := Rebalance(snap)

	assert.Empty(t, report.Overloaded)
	assert.Empty(t, report.Targets)
}

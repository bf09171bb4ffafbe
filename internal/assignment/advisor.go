package assignment

// Utilization thresholds for the rebalancing advisor, in percent of a user's
// capacity-derived open-thread ceiling.
const (
	overloadedThreshold = 90
	targetThreshold     = 70
)

// UserLoad reports one user's utilization.
type UserLoad struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	OpenThreads int    `json:"open_threads"`
	MaxThreads  int    `json:"max_threads"`
	Utilization int    `json:"utilization"`
}

// RebalanceReport flags overloaded users and suggests transfer targets.
type RebalanceReport struct {
	Overloaded []UserLoad `json:"overloaded"`
	Targets    []UserLoad `json:"targets"`
}

// Rebalance computes utilization from the same capacity formula the engine
// uses and flags anyone above 90%, suggesting targets below 70%.
func Rebalance(snap Snapshot) RebalanceReport {
	report := RebalanceReport{Overloaded: []UserLoad{}, Targets: []UserLoad{}}
	for _, u := range stableUsers(snap.Users) {
		max := u.MaxOpenThreads()
		if max == 0 {
			continue
		}
		open := snap.OpenCounts[u.ID]
		load := UserLoad{
			UserID:      u.ID,
			Name:        u.Name,
			OpenThreads: open,
			MaxThreads:  max,
			Utilization: open * 100 / max,
		}
		switch {
		case load.Utilization > overloadedThreshold:
			report.Overloaded = append(report.Overloaded, load)
		case load.Utilization < targetThreshold:
			report.Targets = append(report.Targets, load)
		}
	}
	return report
}

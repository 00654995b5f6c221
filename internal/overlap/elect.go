package overlap

import "github.com/kiranshivaraju/meshcover/pkg/models"

// Elect picks the member with the latest ObservedAt to keep and returns the
// rest for deletion. On equal timestamps the earliest member in the group
// wins, so the choice is deterministic for a given listing order.
// A single-member group yields no deletions.
func Elect(g Group) (keep models.RepeaterRecord, drop []models.RepeaterRecord) {
	if len(g.Members) == 0 {
		return models.RepeaterRecord{}, nil
	}

	best := 0
	for i := 1; i < len(g.Members); i++ {
		if g.Members[i].ObservedAt.After(g.Members[best].ObservedAt) {
			best = i
		}
	}

	for i, m := range g.Members {
		if i != best {
			drop = append(drop, m)
		}
	}
	return g.Members[best], drop
}

// Package overlap clusters repeater registrations that describe the same
// physical site and elects which registration of each cluster survives.
package overlap

import (
	"github.com/kiranshivaraju/meshcover/internal/geo"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// DefaultThresholdMiles is the distance under which two registrations are
// treated as the same site.
const DefaultThresholdMiles = 0.25

// Group is a set of registrations considered to be one site. Location is
// the first member's position and is never recomputed.
type Group struct {
	ID       string
	Location geo.Point
	Members  []models.RepeaterRecord
}

// Overlaps reports whether a and b are within thresholdMiles of each other.
func Overlaps(a, b geo.Point, thresholdMiles float64) bool {
	return geo.HaversineMiles(a, b) <= thresholdMiles
}

// GroupByOverlap partitions records in a single greedy pass: each record
// joins the first existing group whose representative location is within
// thresholdMiles, otherwise it starts a new group at its own location.
//
// This is not connected-components clustering. Representatives are fixed, so
// a chain A-B-C where each hop overlaps but A and C do not can end up split
// across groups, and the result depends on input order.
// Returns an empty slice for empty input (never nil).
func GroupByOverlap(records []models.RepeaterRecord, thresholdMiles float64) []Group {
	groups := []Group{}

	for _, r := range records {
		loc := geo.Point{Lat: r.Lat, Lon: r.Lon}

		found := false
		for i := range groups {
			if Overlaps(groups[i].Location, loc, thresholdMiles) {
				groups[i].Members = append(groups[i].Members, r)
				found = true
				break
			}
		}

		if !found {
			groups = append(groups, Group{
				ID:       r.ID,
				Location: loc,
				Members:  []models.RepeaterRecord{r},
			})
		}
	}

	return groups
}

// IndexByID buckets records by repeater ID, keeping listing order within each
// bucket. ids lists the buckets in first-seen order.
func IndexByID(records []models.RepeaterRecord) (ids []string, byID map[string][]models.RepeaterRecord) {
	byID = make(map[string][]models.RepeaterRecord)
	for _, r := range records {
		if _, ok := byID[r.ID]; !ok {
			ids = append(ids, r.ID)
		}
		byID[r.ID] = append(byID[r.ID], r)
	}
	return ids, byID
}

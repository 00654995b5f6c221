package maintenance

import "time"

// CoverageResult reports a coverage clean-up.
type CoverageResult struct {
	OutOfRange int `json:"coverage_out_of_range"`
}

// RepeaterResult reports a repeater clean-up.
type RepeaterResult struct {
	DeletedStale int `json:"deleted_stale_repeaters"`
	DeletedDupes int `json:"deleted_dupe_repeaters"`
}

// Merge adds o's counters to r.
func (r RepeaterResult) Merge(o RepeaterResult) RepeaterResult {
	return RepeaterResult{
		DeletedStale: r.DeletedStale + o.DeletedStale,
		DeletedDupes: r.DeletedDupes + o.DeletedDupes,
	}
}

// SamplesCleanResult reports a sample clean-up, which currently has nothing
// to do.
type SamplesCleanResult struct{}

// MigrationResult reports one migration invocation. HasMore is set when the
// queue was not fully drained. Discarded counts keys deleted because their
// metadata could not be converted.
type MigrationResult struct {
	Migrated   int       `json:"migrated"`
	Discarded  int       `json:"discarded"`
	HasMore    bool      `json:"has_more"`
	InsertTime time.Time `json:"insert_time"`
}

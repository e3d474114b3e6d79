package history

import (
	"time"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/requirements"
)

// Counts is the trend-level summary of a set of test outcomes.
type Counts struct {
	Total   int `json:"total"`
	Passing int `json:"passing"`
	Failing int `json:"failing"`
	Pending int `json:"pending"`
}

// CountsOf summarizes per-result counts: failing covers failures and errors,
// pending covers pending, ignored and skipped outcomes.
func CountsOf(c outcomes.Counts) Counts {
	return Counts{
		Total:   c.Total,
		Passing: c.Passing(),
		Failing: c.Failing(),
		Pending: c.Indeterminate(),
	}
}

// Snapshot records aggregate counts at one point in time.
type Snapshot struct {
	Time             time.Time         `json:"time"`
	RunID            string            `json:"run_id,omitempty"`
	Overall          Counts            `json:"overall"`
	RequirementTypes map[string]Counts `json:"requirement_types,omitempty"`
	TagTypes         map[string]Counts `json:"tag_types,omitempty"`
}

// NewSnapshot captures the counts of a requirements rollup.
func NewSnapshot(at time.Time, ro *requirements.RequirementsOutcomes) Snapshot {
	snap := Snapshot{
		Time:             at.UTC(),
		Overall:          CountsOf(ro.Counts()),
		RequirementTypes: make(map[string]Counts),
		TagTypes:         make(map[string]Counts),
	}
	for reqType, c := range ro.CountsByType() {
		snap.RequirementTypes[reqType] = CountsOf(c)
	}
	for tagType, c := range ro.TagTypeCounts() {
		snap.TagTypes[tagType] = CountsOf(c)
	}
	return snap
}

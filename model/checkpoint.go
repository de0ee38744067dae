package model

import (
	"github.com/utndatasystems/string-fingerprints/internal/partition"
)

// Checkpoint is one incumbent of an anytime solve: the partition known after
// ElapsedSeconds of search. Partition is nil when the solve produced nothing.
type Checkpoint struct {
	Index          int                 `json:"index"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
	Partition      partition.Partition `json:"partition,omitempty"`
	Objective      float64             `json:"objective_value"`
}

// Trail is the ordered list of checkpoints of one solve. OffsetSeconds is the
// setup cost paid before the search started (corpus loading, model
// construction) and is added to every checkpoint time before comparing it with
// a budget.
type Trail struct {
	OffsetSeconds float64      `json:"offset_seconds"`
	Status        string       `json:"status"`
	Gap           Ratio        `json:"gap"`
	Checkpoints   []Checkpoint `json:"checkpoints"`
}

// Timestamp returns the budget-comparable time of cp.
func (t Trail) Timestamp(cp Checkpoint) float64 {
	return t.OffsetSeconds + cp.ElapsedSeconds
}

// Within returns the checkpoints whose timestamp fits in budget. A negative
// budget keeps everything.
func (t Trail) Within(budget float64) []Checkpoint {
	if budget < 0 {
		return t.Checkpoints
	}
	var out []Checkpoint
	for _, cp := range t.Checkpoints {
		if t.Timestamp(cp) > budget {
			break
		}
		out = append(out, cp)
	}
	return out
}

// Under returns the last checkpoint reached within budget, i.e. the best
// partition known at that time. It reports false when even the first
// checkpoint came later.
func (t Trail) Under(budget float64) (Checkpoint, bool) {
	within := t.Within(budget)
	if len(within) == 0 {
		return Checkpoint{}, false
	}
	return within[len(within)-1], true
}

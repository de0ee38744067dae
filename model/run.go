package model

import (
	"time"

	"github.com/utndatasystems/string-fingerprints/config"
)

// RunStatus is the lifecycle stage of an optimisation run.
type RunStatus string

const (
	RunStatusCreated    RunStatus = "created"
	RunStatusOptimizing RunStatus = "optimizing"
	RunStatusOptimized  RunStatus = "optimized"
	RunStatusEvaluating RunStatus = "evaluating"
	RunStatusEvaluated  RunStatus = "evaluated"
	RunStatusFailed     RunStatus = "failed"
)

// RunStats describes the instance a run optimised.
type RunStats struct {
	Letters      int `json:"letters"`
	Words        int `json:"words"`
	Patterns     int `json:"patterns"`
	AllWords     int `json:"all_words"`
	TestPatterns int `json:"test_patterns"`
	TableWords   int `json:"table_words"`
	Pairs        int `json:"pairs"`
	Vars         int `json:"vars"`
	Constraints  int `json:"constraints"`
	// DroppedNonASCII counts corpus lines removed by the printable-ASCII filter.
	DroppedNonASCII int `json:"dropped_non_ascii"`
}

// SolverSummary is what the backend reported when the solve ended.
type SolverSummary struct {
	Backend    string        `json:"backend"`
	Status     string        `json:"status"`
	Objective  float64       `json:"objective"`
	Bound      float64       `json:"bound"`
	Gap        Ratio         `json:"gap"`
	Incumbents int           `json:"incumbents"`
	Runtime    time.Duration `json:"runtime_ns"`
}

// Run is one optimisation of a partition for a training corpus together with
// the evaluation of its trail.
type Run struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Config    config.RunConfig `json:"config"`
	Status    RunStatus        `json:"status"`
	Stats     RunStats         `json:"stats"`
	Solver    *SolverSummary   `json:"solver,omitempty"`
	Trail     *Trail           `json:"trail,omitempty"`
	Entries   []Entry          `json:"entries,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Best returns the last checkpoint of the trail, the best partition the
// solve produced.
func (r *Run) Best() (Checkpoint, bool) {
	if r.Trail == nil || len(r.Trail.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return r.Trail.Checkpoints[len(r.Trail.Checkpoints)-1], true
}

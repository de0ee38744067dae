package anytime

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
	"github.com/utndatasystems/string-fingerprints/internal/optimizer"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

// sparseTol drops near-zero values from sparse assignments.
const sparseTol = 1e-6

// Snapshot is the terminal state of a run. Sparse and Gap are set only when
// the status admits a solution and one was found.
type Snapshot struct {
	Status      ilp.Status         `json:"status"`
	HasSolution bool               `json:"has_solution"`
	Sparse      map[string]float64 `json:"sparse,omitempty"`
	Objective   float64            `json:"objective"`
	Bound       float64            `json:"bound"`
	Gap         model.Ratio        `json:"gap"`
}

// Sparsify keeps the named variables whose value is not zero.
func Sparsify(m *ilp.Model, values []float64) map[string]float64 {
	sparse := make(map[string]float64)
	for i, v := range values {
		if math.Abs(v) <= sparseTol {
			continue
		}
		name := m.Var(ilp.VarID(i)).Name
		if name == "" {
			name = fmt.Sprintf("v%d", i)
		}
		sparse[name] = v
	}
	return sparse
}

// Gap is the relative distance between objective and bound.
func Gap(objective, bound float64) model.Ratio {
	diff := math.Abs(objective - bound)
	switch {
	case diff <= sparseTol:
		return 0
	case objective == 0:
		return model.Ratio(math.Inf(1))
	default:
		return model.Ratio(diff / math.Abs(objective))
	}
}

// ExtractSolution reads the terminal solution of the run on m.
func (r *Run) ExtractSolution(m *ilp.Model) Snapshot {
	s := Snapshot{Status: r.Outcome.Status, Gap: model.Ratio(math.Inf(1))}
	if bound, ok := r.BestBound(); ok {
		s.Bound = bound
	}
	if !r.Outcome.Status.MayCarrySolution() || !r.Outcome.HasSolution {
		return s
	}
	s.HasSolution = true
	s.Sparse = Sparsify(m, r.Outcome.Values)
	s.Objective = r.Outcome.Objective
	if _, ok := r.BestBound(); ok {
		s.Gap = Gap(s.Objective, s.Bound)
	}
	return s
}

// ReconstructPartition groups the letters of alphabet by the x[letter,bin]
// entries of sparse. Every letter must sit in exactly one bin.
func ReconstructPartition(sparse map[string]float64, alphabet partition.Alphabet, numBins int) (partition.Partition, error) {
	bins := make([][]int, alphabet.Len())
	for name, v := range sparse {
		letter, bin, ok := optimizer.ParseXName(name)
		if !ok || v < 0.5 {
			continue
		}
		if letter < 0 || letter >= alphabet.Len() || bin < 0 || bin >= numBins {
			return nil, &errors.InvalidPartitionError{Reason: fmt.Sprintf("variable %s is outside %d letters and %d bins", name, alphabet.Len(), numBins)}
		}
		bins[letter] = append(bins[letter], bin)
	}

	p := make(partition.Partition, numBins)
	for l, assigned := range bins {
		if len(assigned) != 1 {
			sort.Ints(assigned)
			return nil, errors.NewInvalidPartitionError(alphabet.Letter(l), assigned)
		}
		p[assigned[0]] = append(p[assigned[0]], alphabet.Letter(l))
	}
	return p, nil
}

// Export turns the run into a checkpoint trail over alphabet. Incumbents are
// reconstructed in the order they arrived. When incumbents were not recorded
// the terminal solution is the only checkpoint, and a run without any
// solution yields one checkpoint without a partition. A non-nil fallback
// completes partitions over bytes outside alphabet.
func (r *Run) Export(m *ilp.Model, alphabet partition.Alphabet, numBins int, fallback *partition.Mapping, offset time.Duration) (model.Trail, error) {
	snap := r.ExtractSolution(m)
	trail := model.Trail{
		OffsetSeconds: offset.Seconds(),
		Status:        snap.Status.String(),
		Gap:           snap.Gap,
	}

	incumbents := r.Trail
	if len(incumbents) == 0 && snap.HasSolution {
		incumbents = []Incumbent{{Elapsed: r.Outcome.Runtime, Objective: r.Outcome.Objective, Values: r.Outcome.Values}}
	}
	if len(incumbents) == 0 {
		trail.Checkpoints = []model.Checkpoint{{ElapsedSeconds: r.Outcome.Runtime.Seconds()}}
		return trail, nil
	}

	for i, inc := range incumbents {
		p, err := ReconstructPartition(Sparsify(m, inc.Values), alphabet, numBins)
		if err != nil {
			return trail, fmt.Errorf("incumbent %d: %w", i, err)
		}
		if fallback != nil {
			mapping, err := p.Mapping()
			if err != nil {
				return trail, fmt.Errorf("incumbent %d: %w", i, err)
			}
			p = partition.Revert(mapping.Complete(*fallback))
		}
		trail.Checkpoints = append(trail.Checkpoints, model.Checkpoint{
			Index:          i,
			ElapsedSeconds: inc.Elapsed.Seconds(),
			Partition:      p,
			Objective:      inc.Objective,
		})
	}
	return trail, nil
}

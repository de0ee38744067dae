package optimizer

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/utndatasystems/string-fingerprints/internal/evaluation"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

// RandomSearch samples random partitions and keeps every one that lowers the
// training false-positive count. It is the convergence baseline the solver's
// trail is compared with; its checkpoints use the same objective.
func RandomSearch(ctx context.Context, words, patterns []string, numBins, iterations int, seed uint64) (model.Trail, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := time.Now()
	trail := model.Trail{Status: "suboptimal"}
	best := -1

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return trail, err
		}
		m, err := partition.Random(numBins, rng)
		if err != nil {
			return trail, err
		}
		report, err := evaluation.Score(words, patterns, m)
		if err != nil {
			return trail, err
		}
		if best >= 0 && report.FalsePositives >= best {
			continue
		}
		best = report.FalsePositives
		trail.Checkpoints = append(trail.Checkpoints, model.Checkpoint{
			Index:          len(trail.Checkpoints),
			ElapsedSeconds: time.Since(start).Seconds(),
			Partition:      partition.Revert(m),
			Objective:      float64(best),
		})
		if best == 0 {
			trail.Status = "optimal"
			break
		}
	}
	return trail, nil
}

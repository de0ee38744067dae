// Package pbsat solves ilp models with the gophersat pseudo-boolean solver.
//
// The model is written as OPB, parsed by gophersat and optimized with
// Solver.Optimal, which reports every improving model on a channel. Each of
// them becomes an incumbent event. gophersat cannot be interrupted, so on
// deadline or cancel the search is abandoned: it keeps running in the
// background until it finishes on its own, its remaining results are drained
// and the best model seen so far is returned. Abandoned searches are counted
// by the fingerprints_solver_abandoned_searches gauge; long-lived processes
// should bound solves with the gini backend instead.
package pbsat

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/crillab/gophersat/solver"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
	"github.com/utndatasystems/string-fingerprints/internal/metrics"
)

// Name identifies the backend in configuration and logs.
const Name = "gophersat"

// Backend implements ilp.Backend on top of gophersat.
type Backend struct {
	logger *slog.Logger
}

// New creates a gophersat backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{logger: logger.With("backend", Name)}
}

// Name returns the backend name.
func (b *Backend) Name() string { return Name }

// Solve optimizes m within p.TimeLimit.
func (b *Backend) Solve(ctx context.Context, m *ilp.Model, p ilp.Params, events chan<- ilp.Event) (ilp.Outcome, error) {
	start := time.Now()
	out := ilp.Outcome{Status: ilp.StatusUnknown}
	finish := func(status ilp.Status) (ilp.Outcome, error) {
		out.Status = status
		out.Runtime = time.Since(start)
		return out, nil
	}

	pb, err := ilp.ToPseudoBoolean(m, Name)
	if err != nil {
		out.Status = ilp.StatusError
		return out, err
	}
	if pb.Infeasible {
		return finish(ilp.StatusInfeasible)
	}
	if p.Threads > 1 {
		b.logger.Debug("gophersat searches on a single thread, ignoring thread count", "threads", p.Threads)
	}

	deadline, limited := p.Deadline(start)
	if limited && !time.Now().Before(deadline) {
		return finish(ilp.StatusTimeLimit)
	}

	var opb bytes.Buffer
	if err := WriteOPB(&opb, pb); err != nil {
		out.Status = ilp.StatusError
		return out, err
	}
	problem, err := solver.ParseOPB(&opb)
	if err != nil {
		out.Status = ilp.StatusError
		return out, errors.NewSolverError(Name, ilp.StatusError.String(), err)
	}
	s := solver.New(problem)

	results := make(chan solver.Result)
	stop := make(chan struct{})
	go s.Optimal(results, stop)
	abandon := func() {
		close(stop)
		metrics.AbandonedSearches.Inc()
		b.logger.Warn("Abandoning an uninterruptible search", "elapsed", time.Since(start))
		go func() {
			defer metrics.AbandonedSearches.Dec()
			for range results {
			}
		}()
	}

	var timeout <-chan time.Time
	if limited {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	sawUnsat := false
	for {
		select {
		case res, ok := <-results:
			if !ok {
				if out.HasSolution {
					out.HasBound = true
					out.Bound = out.Objective
					b.emit(ctx, events, ilp.Event{Kind: ilp.EventBound, Elapsed: time.Since(start), Bound: out.Bound})
					return finish(ilp.StatusOptimal)
				}
				if sawUnsat {
					return finish(ilp.StatusInfeasible)
				}
				return finish(ilp.StatusError)
			}
			switch res.Status {
			case solver.Sat:
				values := make([]float64, pb.ModelVars)
				for i := 0; i < pb.ModelVars && i < len(res.Model); i++ {
					if res.Model[i] {
						values[i] = 1
					}
				}
				out.HasSolution = true
				out.Values = values
				out.Objective = pb.ObjectiveValue(res.Weight)
				out.Solutions++
				b.emit(ctx, events, ilp.Event{
					Kind:      ilp.EventIncumbent,
					Elapsed:   time.Since(start),
					Objective: out.Objective,
					Values:    values,
				})
			case solver.Unsat:
				sawUnsat = true
			}
		case <-timeout:
			abandon()
			return finish(ilp.StatusTimeLimit)
		case <-ctx.Done():
			abandon()
			out.Status = ilp.StatusError
			out.Runtime = time.Since(start)
			return out, ctx.Err()
		}
	}
}

func (b *Backend) emit(ctx context.Context, events chan<- ilp.Event, ev ilp.Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// Package anytime drives an ilp.Backend and records the incumbents and
// bounds it reports while searching, so that the best solution known after
// any amount of search time can be recovered.
package anytime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
	"github.com/utndatasystems/string-fingerprints/internal/metrics"
)

var tracer = otel.Tracer("fingerprints.anytime")

// eventBuffer is the capacity of the channel between backend and recorder.
const eventBuffer = 256

// Options configure one solve.
type Options struct {
	TimeLimit time.Duration
	Threads   int
	// RecordIncumbents subscribes to the backend's events. Without it only
	// the terminal solution is known.
	RecordIncumbents bool
}

// Incumbent is an improving solution reported during search.
type Incumbent struct {
	Elapsed   time.Duration
	Objective float64
	Values    []float64
}

// Bound is a proven objective bound reported during search.
type Bound struct {
	Elapsed time.Duration
	Value   float64
}

// Run is the record of one solve.
type Run struct {
	Backend   string
	Direction ilp.Direction
	Outcome   ilp.Outcome
	Trail     []Incumbent
	Bounds    []Bound
}

// Driver solves models with one backend.
type Driver struct {
	backend ilp.Backend
	logger  *slog.Logger
}

// NewDriver creates a driver for backend.
func NewDriver(backend ilp.Backend, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{backend: backend, logger: logger.With("component", "anytime", "backend", backend.Name())}
}

// Solve runs the backend on m. Non-optimal statuses are not errors; the run
// is returned and its status tells the caller what happened.
func (d *Driver) Solve(ctx context.Context, m *ilp.Model, opts Options) (*Run, error) {
	ctx, span := tracer.Start(ctx, "anytime.Solve", trace.WithAttributes(
		attribute.String("solver.backend", d.backend.Name()),
		attribute.String("model.name", m.Name),
		attribute.Int("model.vars", m.NumVars()),
		attribute.Int("model.constraints", len(m.Constraints())),
		attribute.Int64("solver.time_limit_ms", opts.TimeLimit.Milliseconds()),
	))
	defer span.End()

	run := &Run{Backend: d.backend.Name(), Direction: m.Objective().Direction}

	var events chan ilp.Event
	done := make(chan struct{})
	if opts.RecordIncumbents {
		events = make(chan ilp.Event, eventBuffer)
		go run.record(events, done)
	} else {
		close(done)
	}

	d.logger.Info("Starting solve", "model", m.Name, "vars", m.NumVars(), "constraints", len(m.Constraints()),
		"time_limit", opts.TimeLimit, "threads", opts.Threads)
	outcome, err := d.backend.Solve(ctx, m, ilp.Params{TimeLimit: opts.TimeLimit, Threads: opts.Threads}, events)
	if events != nil {
		close(events)
	}
	<-done
	run.Outcome = outcome

	metrics.SolvesTotal.WithLabelValues(run.Backend, outcome.Status.String()).Inc()
	metrics.SolveDuration.WithLabelValues(run.Backend).Observe(outcome.Runtime.Seconds())
	metrics.IncumbentsTotal.WithLabelValues(run.Backend).Add(float64(len(run.Trail)))
	span.SetAttributes(
		attribute.String("solver.status", outcome.Status.String()),
		attribute.Int("solver.incumbents", len(run.Trail)),
		attribute.Bool("solver.has_solution", outcome.HasSolution),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return run, err
		}
		return run, errors.NewSolverError(run.Backend, outcome.Status.String(), err)
	}

	d.logger.Info("Solve finished",
		"status", outcome.Status.String(),
		"has_solution", outcome.HasSolution,
		"objective", outcome.Objective,
		"incumbents", len(run.Trail),
		"bounds", len(run.Bounds),
		"runtime", outcome.Runtime)
	return run, nil
}

// record drains events until the channel is closed. Incumbent values are
// kept as handed over; bounds are kept only when they tighten.
func (r *Run) record(events <-chan ilp.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.Kind {
		case ilp.EventIncumbent:
			r.Trail = append(r.Trail, Incumbent{Elapsed: ev.Elapsed, Objective: ev.Objective, Values: ev.Values})
		case ilp.EventBound:
			if n := len(r.Bounds); n > 0 && !r.tightens(ev.Bound, r.Bounds[n-1].Value) {
				continue
			}
			r.Bounds = append(r.Bounds, Bound{Elapsed: ev.Elapsed, Value: ev.Bound})
		}
	}
}

func (r *Run) tightens(candidate, current float64) bool {
	if r.Direction == ilp.Maximize {
		return candidate < current
	}
	return candidate > current
}

// BestBound returns the tightest bound known, preferring the terminal one.
func (r *Run) BestBound() (float64, bool) {
	if r.Outcome.HasBound {
		return r.Outcome.Bound, true
	}
	if n := len(r.Bounds); n > 0 {
		return r.Bounds[n-1].Value, true
	}
	return 0, false
}

// String summarizes the run for logs.
func (r *Run) String() string {
	return fmt.Sprintf("%s: %s after %s, %d incumbents", r.Backend, r.Outcome.Status, r.Outcome.Runtime, len(r.Trail))
}

// Package ginisat solves ilp models with the gini SAT solver.
//
// Constraints become circuit literals: clauses for ">= 1", conjunctions for
// fully tight constraints and cardinality sorters otherwise. Weights are
// expanded into repeated inputs, so the backend is meant for the small unit
// coefficient models the partition optimizer produces. The objective is
// minimized by linear search: after every model the cost bound is tightened
// by assuming the sorter output "cost <= best-1" until the solver proves it
// unsatisfiable. Every solve runs in gini's background goroutine and is
// stopped on deadline or cancel, so nothing outlives Solve.
package ginisat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
)

// Name identifies the backend in configuration and logs.
const Name = "gini"

const (
	// maxExpandedWeight caps the inputs of one cardinality sorter.
	maxExpandedWeight = 1 << 16

	pollInterval = 5 * time.Millisecond
)

// Backend implements ilp.Backend on top of gini.
type Backend struct {
	logger *slog.Logger
}

// New creates a gini backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{logger: logger.With("backend", Name)}
}

// Name returns the backend name.
func (b *Backend) Name() string { return Name }

type encoding struct {
	circuit *logic.C
	vars    []z.Lit
	roots   []z.Lit
	cost    []z.Lit
	atMost  []z.Lit // atMost[k] holds iff at most k cost inputs are true
}

func (e *encoding) lit(l ilp.PBLit) z.Lit {
	m := e.vars[l.Var]
	if l.Negated {
		return m.Not()
	}
	return m
}

func (e *encoding) expand(terms []ilp.PBTerm) ([]z.Lit, error) {
	total := 0
	for _, t := range terms {
		total += t.Weight
	}
	if total > maxExpandedWeight {
		return nil, errors.NewUnsupportedModelError(Name, fmt.Sprintf("total weight %d exceeds %d", total, maxExpandedWeight))
	}
	out := make([]z.Lit, 0, total)
	for _, t := range terms {
		m := e.lit(t.Lit)
		for i := 0; i < t.Weight; i++ {
			out = append(out, m)
		}
	}
	return out, nil
}

func encode(pb *ilp.PseudoBoolean) (*encoding, error) {
	c := logic.NewC()
	e := &encoding{circuit: c, vars: make([]z.Lit, pb.NumVars)}
	for i := range e.vars {
		e.vars[i] = c.Lit()
	}
	for _, con := range pb.Constraints {
		ms, err := e.expand(con.Terms)
		if err != nil {
			return nil, err
		}
		switch {
		case con.Equal && con.Bound == 0:
			negs := make([]z.Lit, len(ms))
			for i, m := range ms {
				negs[i] = m.Not()
			}
			e.roots = append(e.roots, c.Ands(negs...))
		case con.Bound == len(ms):
			e.roots = append(e.roots, c.Ands(ms...))
		case !con.Equal && con.Bound == 1:
			e.roots = append(e.roots, c.Ors(ms...))
		case con.Equal:
			sorter := c.CardSort(ms)
			e.roots = append(e.roots, c.And(sorter.Geq(con.Bound), sorter.Leq(con.Bound)))
		default:
			e.roots = append(e.roots, c.CardSort(ms).Geq(con.Bound))
		}
	}
	cost, err := e.expand(pb.Objective)
	if err != nil {
		return nil, err
	}
	e.cost = cost
	if len(cost) > 0 {
		sorter := c.CardSort(cost)
		e.atMost = make([]z.Lit, len(cost))
		for k := range e.atMost {
			e.atMost[k] = sorter.Leq(k)
		}
	}
	return e, nil
}

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
		b.logger.Debug("gini searches on a single thread, ignoring thread count", "threads", p.Threads)
	}
	deadline, limited := p.Deadline(start)
	if limited && !time.Now().Before(deadline) {
		return finish(ilp.StatusTimeLimit)
	}

	enc, err := encode(pb)
	if err != nil {
		out.Status = ilp.StatusError
		return out, err
	}
	g := gini.New()
	enc.circuit.ToCnf(g)
	for _, root := range enc.roots {
		g.Add(root)
		g.Add(z.LitNull)
	}

	best := -1
	for proven := false; !proven; {
		if err := ctx.Err(); err != nil {
			out.Status = ilp.StatusError
			out.Runtime = time.Since(start)
			return out, err
		}
		if best > 0 {
			g.Assume(enc.atMost[best-1])
		}

		if limited && !time.Now().Before(deadline) {
			return finish(ilp.StatusTimeLimit)
		}
		result, err := await(ctx, g.GoSolve(), deadline, limited)
		if err != nil {
			out.Status = ilp.StatusError
			out.Runtime = time.Since(start)
			return out, err
		}

		switch result {
		case 1:
			values := make([]float64, pb.ModelVars)
			for i := range values {
				if g.Value(enc.vars[i]) {
					values[i] = 1
				}
			}
			cost := 0
			for _, m := range enc.cost {
				if g.Value(m) {
					cost++
				}
			}
			best = cost
			out.HasSolution = true
			out.Values = values
			out.Objective = pb.ObjectiveValue(cost)
			out.Solutions++
			emit(ctx, events, ilp.Event{Kind: ilp.EventIncumbent, Elapsed: time.Since(start), Objective: out.Objective, Values: values})
			proven = cost == 0
		case -1:
			if !out.HasSolution {
				return finish(ilp.StatusInfeasible)
			}
			proven = true
		default:
			return finish(ilp.StatusTimeLimit)
		}
	}

	out.HasBound = true
	out.Bound = out.Objective
	emit(ctx, events, ilp.Event{Kind: ilp.EventBound, Elapsed: time.Since(start), Bound: out.Bound})
	return finish(ilp.StatusOptimal)
}

// await polls a background solve until it answers, stopping it on deadline
// or cancel. Stop returns only once the solving goroutine has returned.
func await(ctx context.Context, s inter.Solve, deadline time.Time, limited bool) (int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var timeout <-chan time.Time
	if limited {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		if result, done := s.Test(); done {
			return result, nil
		}
		select {
		case <-ctx.Done():
			s.Stop()
			return 0, ctx.Err()
		case <-timeout:
			return s.Stop(), nil
		case <-ticker.C:
		}
	}
}

func emit(ctx context.Context, events chan<- ilp.Event, ev ilp.Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

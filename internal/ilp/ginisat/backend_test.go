package ginisat

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utndatasystems/string-fingerprints/internal/ilp"
)

// exactlyOneModel places 3 items into 2 boxes; items 0 and 1 conflict and the
// objective counts items in box 1.
func exactlyOneModel() *ilp.Model {
	m := ilp.NewModel("boxes")
	var x [3][2]ilp.VarID
	for i := range x {
		for b := range x[i] {
			x[i][b] = m.AddBinary("")
		}
		m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, x[i][0]), ilp.Pos(1, x[i][1])}, Sense: ilp.Equal, RHS: 1})
	}
	for b := 0; b < 2; b++ {
		m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, x[0][b]), ilp.Pos(1, x[1][b])}, Sense: ilp.LessEqual, RHS: 1})
	}
	m.SetObjective(ilp.Objective{Terms: []ilp.Term{ilp.Pos(1, x[0][1]), ilp.Pos(1, x[1][1]), ilp.Pos(1, x[2][1])}})
	return m
}

func TestSolveMinimizes(t *testing.T) {
	m := exactlyOneModel()
	events := make(chan ilp.Event, 16)

	out, err := New(nil).Solve(context.Background(), m, ilp.Params{TimeLimit: 10 * time.Second, Threads: 4}, events)
	require.NoError(t, err)
	close(events)

	assert.Equal(t, ilp.StatusOptimal, out.Status)
	require.True(t, out.HasSolution)
	assert.Equal(t, 1.0, out.Objective)
	assert.NoError(t, m.Check(out.Values))
	assert.Equal(t, 1.0, m.Evaluate(out.Values))

	prev := -1.0
	var sawBound bool
	for ev := range events {
		switch ev.Kind {
		case ilp.EventIncumbent:
			if prev >= 0 {
				assert.Less(t, ev.Objective, prev, "incumbents must improve")
			}
			prev = ev.Objective
		case ilp.EventBound:
			sawBound = true
			assert.Equal(t, 1.0, ev.Bound)
		}
	}
	assert.True(t, sawBound)
}

func TestSolveCardinality(t *testing.T) {
	// at least 2 of 4, minimize count: optimum 2
	m := ilp.NewModel("card")
	var terms []ilp.Term
	for i := 0; i < 4; i++ {
		terms = append(terms, ilp.Pos(1, m.AddBinary("")))
	}
	m.AddConstraint(ilp.Constraint{Terms: terms, Sense: ilp.GreaterEqual, RHS: 2})
	m.SetObjective(ilp.Objective{Terms: terms})

	out, err := New(nil).Solve(context.Background(), m, ilp.Params{TimeLimit: ilp.NoTimeLimit}, nil)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusOptimal, out.Status)
	assert.Equal(t, 2.0, out.Objective)
	assert.NoError(t, m.Check(out.Values))
}

func TestSolveInfeasible(t *testing.T) {
	m := ilp.NewModel("infeasible")
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(1, b)}, Sense: ilp.Equal, RHS: 1})
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, a)}, Sense: ilp.GreaterEqual, RHS: 1})
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, b)}, Sense: ilp.GreaterEqual, RHS: 1})

	out, err := New(nil).Solve(context.Background(), m, ilp.Params{TimeLimit: 5 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusInfeasible, out.Status)
	assert.False(t, out.HasSolution)
}

func TestSolveZeroTimeLimit(t *testing.T) {
	out, err := New(nil).Solve(context.Background(), exactlyOneModel(), ilp.Params{TimeLimit: 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusTimeLimit, out.Status)
	assert.False(t, out.HasSolution)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Solve(ctx, exactlyOneModel(), ilp.Params{TimeLimit: time.Second}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// pigeonholeModel puts pigeons into one fewer holes, paying one per pigeon
// left out. A placement with cost 1 is easy; proving it optimal is the
// pigeonhole principle, which keeps a CDCL solver busy far beyond a second.
func pigeonholeModel(pigeons int) *ilp.Model {
	m := ilp.NewModel("pigeonhole")
	holes := pigeons - 1
	x := make([][]ilp.VarID, pigeons)
	var slack []ilp.Term
	for p := range x {
		x[p] = make([]ilp.VarID, holes)
		terms := make([]ilp.Term, 0, holes+1)
		for h := range x[p] {
			x[p][h] = m.AddBinary("")
			terms = append(terms, ilp.Pos(1, x[p][h]))
		}
		s := ilp.Pos(1, m.AddBinary(""))
		slack = append(slack, s)
		m.AddConstraint(ilp.Constraint{Terms: append(terms, s), Sense: ilp.GreaterEqual, RHS: 1})
	}
	for h := 0; h < holes; h++ {
		terms := make([]ilp.Term, pigeons)
		for p := range x {
			terms[p] = ilp.Pos(1, x[p][h])
		}
		m.AddConstraint(ilp.Constraint{Terms: terms, Sense: ilp.LessEqual, RHS: 1})
	}
	m.SetObjective(ilp.Objective{Terms: slack})
	return m
}

// waitForGoroutines fails unless the goroutine count drops back to want.
func waitForGoroutines(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d goroutines after the solve returned, still %d", want, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSolveStopsAtTimeLimit(t *testing.T) {
	before := runtime.NumGoroutine()

	start := time.Now()
	out, err := New(nil).Solve(context.Background(), pigeonholeModel(12), ilp.Params{TimeLimit: 300 * time.Millisecond}, nil)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusTimeLimit, out.Status)
	assert.Less(t, time.Since(start), 2*time.Second)

	waitForGoroutines(t, before)
}

func TestSolveStopsOnCancel(t *testing.T) {
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := New(nil).Solve(ctx, pigeonholeModel(12), ilp.Params{TimeLimit: ilp.NoTimeLimit}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	waitForGoroutines(t, before)
}

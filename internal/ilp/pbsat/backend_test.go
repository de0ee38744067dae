package pbsat

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utndatasystems/string-fingerprints/internal/ilp"
)

func coverModel() *ilp.Model {
	// minimize a + b + c subject to a + b >= 1, b + c >= 1
	m := ilp.NewModel("cover")
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	c := m.AddBinary("c")
	m.AddConstraint(ilp.Constraint{Name: "ab", Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(1, b)}, Sense: ilp.GreaterEqual, RHS: 1})
	m.AddConstraint(ilp.Constraint{Name: "bc", Terms: []ilp.Term{ilp.Pos(1, b), ilp.Pos(1, c)}, Sense: ilp.GreaterEqual, RHS: 1})
	m.SetObjective(ilp.Objective{Direction: ilp.Minimize, Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(1, b), ilp.Pos(1, c)}})
	return m
}

func TestWriteOPB(t *testing.T) {
	m := ilp.NewModel("opb")
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(-1, b)}, Sense: ilp.LessEqual, RHS: 0})
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(1, b)}, Sense: ilp.Equal, RHS: 1})
	m.SetObjective(ilp.Objective{Terms: []ilp.Term{ilp.Compl(2, a)}})

	pb, err := ilp.ToPseudoBoolean(m, Name)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOPB(&buf, pb))
	assert.Equal(t, "* #variable= 2 #constraint= 2\n"+
		"min: +2 ~x1 ;\n"+
		" +1 ~x1 +1 x2 >= 1 ;\n"+
		" +1 x1 +1 x2 = 1 ;\n", buf.String())
}

func TestSolveMinimizes(t *testing.T) {
	backend := New(nil)
	events := make(chan ilp.Event, 16)

	out, err := backend.Solve(context.Background(), coverModel(), ilp.Params{TimeLimit: 10 * time.Second}, events)
	require.NoError(t, err)
	close(events)

	assert.Equal(t, ilp.StatusOptimal, out.Status)
	require.True(t, out.HasSolution)
	assert.Equal(t, 1.0, out.Objective)
	assert.Equal(t, []float64{0, 1, 0}, out.Values)
	assert.True(t, out.HasBound)
	assert.Equal(t, 1.0, out.Bound)

	var incumbents int
	var last ilp.Event
	for ev := range events {
		if ev.Kind == ilp.EventIncumbent {
			incumbents++
			assert.NoError(t, coverModel().Check(ev.Values))
		}
		last = ev
	}
	assert.Equal(t, out.Solutions, incumbents)
	assert.Equal(t, ilp.EventBound, last.Kind)
}

func TestSolveMaximizeWithProduct(t *testing.T) {
	// maximize a + b - 2*a*b: optimum 1 with exactly one of a, b set
	m := ilp.NewModel("xor")
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	y := m.AddBinary("y")
	m.AddConstraint(ilp.Constraint{
		Name:     "link",
		Terms:    []ilp.Term{ilp.Pos(1, y)},
		Products: []ilp.Product{{Coeff: -1, A: ilp.Lit{Var: a}, B: ilp.Lit{Var: b}}},
		Sense:    ilp.Equal,
		RHS:      0,
	})
	m.SetObjective(ilp.Objective{Direction: ilp.Maximize, Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(1, b), ilp.Pos(-2, y)}})

	out, err := New(nil).Solve(context.Background(), m, ilp.Params{TimeLimit: ilp.NoTimeLimit}, nil)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusOptimal, out.Status)
	assert.Equal(t, 1.0, out.Objective)
	assert.Equal(t, 1.0, out.Values[a]+out.Values[b])
	assert.NoError(t, m.Check(out.Values))
}

func TestSolveInfeasible(t *testing.T) {
	m := ilp.NewModel("infeasible")
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, a), ilp.Pos(1, b)}, Sense: ilp.GreaterEqual, RHS: 2})
	m.AddConstraint(ilp.Constraint{Terms: []ilp.Term{ilp.Pos(1, a)}, Sense: ilp.LessEqual, RHS: 0})

	out, err := New(nil).Solve(context.Background(), m, ilp.Params{TimeLimit: 5 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusInfeasible, out.Status)
	assert.False(t, out.HasSolution)
}

func TestSolveZeroTimeLimit(t *testing.T) {
	events := make(chan ilp.Event, 4)
	out, err := New(nil).Solve(context.Background(), coverModel(), ilp.Params{TimeLimit: 0}, events)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusTimeLimit, out.Status)
	assert.False(t, out.HasSolution)
	assert.Empty(t, out.Values)
	assert.Len(t, events, 0)
}

func TestSolveRejectsWideContinuous(t *testing.T) {
	m := ilp.NewModel("wide")
	m.AddContinuous("z", 0, 5)
	_, err := New(nil).Solve(context.Background(), m, ilp.Params{TimeLimit: time.Second}, nil)
	require.Error(t, err)
}

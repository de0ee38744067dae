// Package ilp is the integer-programming capability the optimizer is written
// against: 0/1 and bounded continuous variables, integer-coefficient linear
// constraints (optionally with products of two literals), a linear
// objective, and a Backend that solves a Model under a time limit while
// streaming incumbents and bounds.
package ilp

import (
	"fmt"
	"math"
)

// FeasibilityTol is the slack allowed when checking an assignment.
const FeasibilityTol = 1e-6

// VarKind distinguishes integral from continuous variables.
type VarKind int

const (
	Binary VarKind = iota
	Continuous
)

func (k VarKind) String() string {
	if k == Continuous {
		return "continuous"
	}
	return "binary"
}

// VarID indexes a variable of a Model.
type VarID int

// Var describes one decision variable.
type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Lit is a variable or its complement 1 - v.
type Lit struct {
	Var     VarID
	Negated bool
}

// Not returns the complement.
func (l Lit) Not() Lit {
	return Lit{Var: l.Var, Negated: !l.Negated}
}

// Value evaluates the literal under values.
func (l Lit) Value(values []float64) float64 {
	if l.Negated {
		return 1 - values[l.Var]
	}
	return values[l.Var]
}

// Term is Coeff times a literal.
type Term struct {
	Coeff int
	Lit   Lit
}

// Pos returns the term c*v.
func Pos(c int, v VarID) Term {
	return Term{Coeff: c, Lit: Lit{Var: v}}
}

// Compl returns the term c*(1-v).
func Compl(c int, v VarID) Term {
	return Term{Coeff: c, Lit: Lit{Var: v, Negated: true}}
}

// Product is Coeff times A*B.
type Product struct {
	Coeff int
	A, B  Lit
}

// Sense is the comparison of a constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

// Constraint is Σ Terms + Σ Products (Sense) RHS.
type Constraint struct {
	Name     string
	Terms    []Term
	Products []Product
	Sense    Sense
	RHS      int
}

func (c Constraint) activity(values []float64) float64 {
	var sum float64
	for _, t := range c.Terms {
		sum += float64(t.Coeff) * t.Lit.Value(values)
	}
	for _, p := range c.Products {
		sum += float64(p.Coeff) * p.A.Value(values) * p.B.Value(values)
	}
	return sum
}

// Direction of optimization.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Objective is Constant + Σ Terms, optimized in Direction.
type Objective struct {
	Direction Direction
	Terms     []Term
	Constant  int
}

// Model is an integer program. It is built once and then only read.
type Model struct {
	Name        string
	vars        []Var
	byName      map[string]VarID
	constraints []Constraint
	objective   Objective
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, byName: make(map[string]VarID)}
}

func (m *Model) addVar(v Var) VarID {
	id := VarID(len(m.vars))
	m.vars = append(m.vars, v)
	if v.Name != "" {
		m.byName[v.Name] = id
	}
	return id
}

// AddBinary adds a 0/1 variable.
func (m *Model) AddBinary(name string) VarID {
	return m.addVar(Var{Name: name, Kind: Binary, Lower: 0, Upper: 1})
}

// AddContinuous adds a continuous variable bounded to [lower, upper].
func (m *Model) AddContinuous(name string, lower, upper float64) VarID {
	return m.addVar(Var{Name: name, Kind: Continuous, Lower: lower, Upper: upper})
}

// AddConstraint appends c.
func (m *Model) AddConstraint(c Constraint) {
	m.constraints = append(m.constraints, c)
}

// SetObjective replaces the objective.
func (m *Model) SetObjective(o Objective) {
	m.objective = o
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// Var returns the description of id.
func (m *Model) Var(id VarID) Var { return m.vars[id] }

// Vars returns all variables in id order.
func (m *Model) Vars() []Var { return m.vars }

// Constraints returns all constraints in insertion order.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Objective returns the objective.
func (m *Model) Objective() Objective { return m.objective }

// VarByName looks a variable up by name.
func (m *Model) VarByName(name string) (VarID, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// Stats summarizes model size.
type Stats struct {
	Vars        int `json:"vars"`
	Binary      int `json:"binary"`
	Continuous  int `json:"continuous"`
	Constraints int `json:"constraints"`
	Products    int `json:"products"`
	Nonzeros    int `json:"nonzeros"`
}

// Stats counts variables, constraints and nonzeros.
func (m *Model) Stats() Stats {
	s := Stats{Vars: len(m.vars), Constraints: len(m.constraints)}
	for _, v := range m.vars {
		if v.Kind == Binary {
			s.Binary++
		} else {
			s.Continuous++
		}
	}
	for _, c := range m.constraints {
		s.Products += len(c.Products)
		s.Nonzeros += len(c.Terms) + 2*len(c.Products)
	}
	return s
}

// Evaluate returns the objective value of values.
func (m *Model) Evaluate(values []float64) float64 {
	sum := float64(m.objective.Constant)
	for _, t := range m.objective.Terms {
		sum += float64(t.Coeff) * t.Lit.Value(values)
	}
	return sum
}

// Check verifies that values satisfies bounds, integrality and every
// constraint, returning the first violation found.
func (m *Model) Check(values []float64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("assignment has %d values for %d variables", len(values), len(m.vars))
	}
	for i, v := range m.vars {
		x := values[i]
		if x < v.Lower-FeasibilityTol || x > v.Upper+FeasibilityTol {
			return fmt.Errorf("variable %s = %g outside [%g, %g]", v.Name, x, v.Lower, v.Upper)
		}
		if v.Kind == Binary && math.Abs(x-math.Round(x)) > FeasibilityTol {
			return fmt.Errorf("binary variable %s = %g is fractional", v.Name, x)
		}
	}
	for _, c := range m.constraints {
		lhs := c.activity(values)
		rhs := float64(c.RHS)
		var ok bool
		switch c.Sense {
		case LessEqual:
			ok = lhs <= rhs+FeasibilityTol
		case GreaterEqual:
			ok = lhs >= rhs-FeasibilityTol
		default:
			ok = math.Abs(lhs-rhs) <= FeasibilityTol
		}
		if !ok {
			return fmt.Errorf("constraint %s violated: %g %s %d", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}

package ilp

import (
	"fmt"
	"sort"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
)

// PBLit is a literal over the pseudo-boolean variable space: the model's
// variables first, then one auxiliary per distinct product.
type PBLit struct {
	Var     int
	Negated bool
}

// PBTerm is a strictly positive weight on a literal.
type PBTerm struct {
	Weight int
	Lit    PBLit
}

// PBConstraint is Σ Terms >= Bound, or = Bound when Equal.
type PBConstraint struct {
	Terms []PBTerm
	Equal bool
	Bound int
}

// TotalWeight sums the weights of c.
func (c PBConstraint) TotalWeight() int {
	total := 0
	for _, t := range c.Terms {
		total += t.Weight
	}
	return total
}

// PseudoBoolean is a Model rewritten for 0/1 solvers: positive weights, only
// ">=" and "=" constraints, products replaced by AND auxiliaries and a
// minimization objective. The model objective equals
// Sign * (Offset + Σ Objective).
type PseudoBoolean struct {
	ModelVars   int
	NumVars     int
	Constraints []PBConstraint
	Objective   []PBTerm
	Offset      int
	Sign        int
	// Infeasible is set when a constraint cannot hold for any assignment.
	Infeasible bool
}

// ObjectiveValue maps a minimized cost back to the model's objective.
func (pb *PseudoBoolean) ObjectiveValue(cost int) float64 {
	return float64(pb.Sign * (pb.Offset + cost))
}

type linearForm struct {
	weights  map[PBLit]int
	constant int
}

func newLinearForm() *linearForm {
	return &linearForm{weights: make(map[PBLit]int)}
}

func (f *linearForm) add(coeff int, l PBLit) {
	if coeff == 0 {
		return
	}
	if coeff < 0 {
		// c*l = c + |c|*(not l)
		f.constant += coeff
		coeff = -coeff
		l.Negated = !l.Negated
	}
	f.weights[l] += coeff
}

// terms cancels opposite literals of the same variable and returns the
// remaining terms ordered by variable.
func (f *linearForm) terms() []PBTerm {
	for l, w := range f.weights {
		if l.Negated {
			continue
		}
		neg := PBLit{Var: l.Var, Negated: true}
		wn, ok := f.weights[neg]
		if !ok {
			continue
		}
		// w*v + wn*(1-v) = min + (w-min)*v + (wn-min)*(1-v)
		common := min(w, wn)
		f.constant += common
		f.weights[l] = w - common
		f.weights[neg] = wn - common
	}
	out := make([]PBTerm, 0, len(f.weights))
	for l, w := range f.weights {
		if w > 0 {
			out = append(out, PBTerm{Weight: w, Lit: l})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lit.Var != out[j].Lit.Var {
			return out[i].Lit.Var < out[j].Lit.Var
		}
		return !out[i].Lit.Negated && out[j].Lit.Negated
	})
	return out
}

// ToPseudoBoolean rewrites m for a 0/1 backend. Continuous variables must be
// bounded to [0, 1]; they are treated as binary, which preserves optimal
// objective values for models whose continuous variables only appear as
// upper-bounded helpers.
func ToPseudoBoolean(m *Model, backend string) (*PseudoBoolean, error) {
	pb := &PseudoBoolean{ModelVars: m.NumVars(), NumVars: m.NumVars(), Sign: 1}
	for _, v := range m.Vars() {
		if v.Kind == Continuous && (v.Lower != 0 || v.Upper != 1) {
			return nil, errors.NewUnsupportedModelError(backend, fmt.Sprintf("continuous variable %s has bounds [%g, %g], only [0, 1] is supported", v.Name, v.Lower, v.Upper))
		}
	}

	toPB := func(l Lit) PBLit { return PBLit{Var: int(l.Var), Negated: l.Negated} }
	aux := make(map[[2]PBLit]int)
	and := func(a, b PBLit) PBLit {
		if b.Var < a.Var || (b.Var == a.Var && !b.Negated) {
			a, b = b, a
		}
		key := [2]PBLit{a, b}
		if y, ok := aux[key]; ok {
			return PBLit{Var: y}
		}
		y := pb.NumVars
		pb.NumVars++
		aux[key] = y
		yl := PBLit{Var: y}
		// y <= a and y <= b
		for _, factor := range []PBLit{a, b} {
			f := newLinearForm()
			f.add(1, factor)
			f.add(-1, yl)
			pb.add(f, false, 0)
		}
		// y >= a + b - 1
		f := newLinearForm()
		f.add(1, yl)
		f.add(-1, a)
		f.add(-1, b)
		pb.add(f, false, -1)
		return yl
	}

	for _, c := range m.Constraints() {
		f := newLinearForm()
		for _, t := range c.Terms {
			f.add(t.Coeff, toPB(t.Lit))
		}
		for _, p := range c.Products {
			f.add(p.Coeff, and(toPB(p.A), toPB(p.B)))
		}
		switch c.Sense {
		case GreaterEqual:
			pb.add(f, false, c.RHS)
		case Equal:
			pb.add(f, true, c.RHS)
		default:
			neg := newLinearForm()
			for l, w := range f.weights {
				neg.add(-w, l)
			}
			neg.constant -= f.constant
			pb.add(neg, false, -c.RHS)
		}
	}

	obj := m.Objective()
	f := newLinearForm()
	sign := 1
	if obj.Direction == Maximize {
		sign = -1
		pb.Sign = -1
	}
	for _, t := range obj.Terms {
		f.add(sign*t.Coeff, toPB(t.Lit))
	}
	pb.Objective = f.terms()
	pb.Offset = f.constant + sign*obj.Constant
	return pb, nil
}

// add records Σ f + f.constant (>= or =) rhs.
func (pb *PseudoBoolean) add(f *linearForm, equal bool, rhs int) {
	terms := f.terms()
	bound := rhs - f.constant
	c := PBConstraint{Terms: terms, Equal: equal, Bound: bound}
	total := c.TotalWeight()
	switch {
	case bound > total:
		pb.Infeasible = true
		return
	case equal && bound < 0:
		pb.Infeasible = true
		return
	case !equal && bound <= 0:
		return
	case len(terms) == 0:
		return
	}
	pb.Constraints = append(pb.Constraints, c)
}

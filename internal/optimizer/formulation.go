// Package optimizer encodes the search for a low false-positive partition as
// an integer program.
//
// Variables:
//
//	x[l,b]    letter l sits in bin b (exactly one bin per letter)
//	idw[w,b]  word w sets bin b, forced to OR of x[l,b] over w's letters
//	idp[p,b]  pattern p sets bin b, same linking as words
//	eta[k]    classification pair k is a false positive
//
// A pair (w, p) is a false positive iff no bin is set by p but not by w. The
// model requires eta[k] + Σ_b idp[p,b]·(1 - idw[w,b]) >= 1 and minimizes
// Σ eta, so at an optimum eta[k] is 1 exactly when the pattern's fingerprint
// is a subset of the word's. The linearized encoding replaces each product
// by a helper h[k,b] <= idp[p,b], h[k,b] <= 1 - idw[w,b].
package optimizer

import (
	"fmt"
	"strings"

	"github.com/utndatasystems/string-fingerprints/internal/corpus"
	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/fingerprint"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
)

// Encoding selects how the false-positive condition is written.
type Encoding string

const (
	EncodingLinearized Encoding = "linearized"
	EncodingBilinear   Encoding = "bilinear"
)

// Options shape the formulation.
type Options struct {
	NumBins  int
	Encoding Encoding
	// BreakSymmetry pins letter i to bins [0, i]. Bins are interchangeable, so
	// this removes equivalent relabelings without excluding any partition.
	BreakSymmetry bool
	// MaxPairs rejects instances with more classification pairs; 0 disables the guard.
	MaxPairs int
}

// Instance is a training corpus indexed against an alphabet.
type Instance struct {
	Alphabet partition.Alphabet
	Words    []corpus.Item
	Patterns []corpus.Item
	Pairs    []corpus.Pair
}

// NewInstance indexes words and patterns and lists their classification pairs.
func NewInstance(words, patterns []string, alphabet partition.Alphabet) (*Instance, error) {
	wordItems, err := corpus.Items(words, alphabet)
	if err != nil {
		return nil, fmt.Errorf("indexing words: %w", err)
	}
	patternItems, err := corpus.Items(patterns, alphabet)
	if err != nil {
		return nil, fmt.Errorf("indexing patterns: %w", err)
	}
	return &Instance{
		Alphabet: alphabet,
		Words:    wordItems,
		Patterns: patternItems,
		Pairs:    corpus.ClassificationPairs(words, patterns),
	}, nil
}

// Sizing predicts the model size of an instance.
type Sizing struct {
	Letters     int `json:"letters"`
	Bins        int `json:"bins"`
	Words       int `json:"words"`
	Patterns    int `json:"patterns"`
	Pairs       int `json:"pairs"`
	Vars        int `json:"vars"`
	Constraints int `json:"constraints"`
}

// Sizing counts variables and constraints Build would create.
func (inst *Instance) Sizing(opts Options) Sizing {
	s := Sizing{
		Letters:  inst.Alphabet.Len(),
		Bins:     opts.NumBins,
		Words:    len(inst.Words),
		Patterns: len(inst.Patterns),
		Pairs:    len(inst.Pairs),
	}
	s.Vars = s.Letters*s.Bins + (s.Words+s.Patterns)*s.Bins + s.Pairs
	s.Constraints = s.Letters + s.Pairs
	if opts.BreakSymmetry {
		s.Constraints += min(s.Letters, s.Bins-1)
	}
	for _, items := range [][]corpus.Item{inst.Words, inst.Patterns} {
		for _, item := range items {
			s.Constraints += s.Bins * (len(item.Letters) + 1)
		}
	}
	if opts.Encoding != EncodingBilinear {
		s.Vars += s.Pairs * s.Bins
		s.Constraints += 2 * s.Pairs * s.Bins
	}
	return s
}

// XName is the variable name of letter l in bin b.
func XName(letter, bin int) string {
	return fmt.Sprintf("x[%d,%d]", letter, bin)
}

// ParseXName reverses XName.
func ParseXName(name string) (letter, bin int, ok bool) {
	if !strings.HasPrefix(name, "x[") {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(name, "x[%d,%d]", &letter, &bin); err != nil {
		return 0, 0, false
	}
	return letter, bin, true
}

// Formulation is a built model together with the handles of its variables.
type Formulation struct {
	Model     *ilp.Model
	Instance  *Instance
	Options   Options
	X         [][]ilp.VarID
	IDWord    [][]ilp.VarID
	IDPattern [][]ilp.VarID
	Eta       []ilp.VarID
	Helpers   [][]ilp.VarID
}

// Build creates the integer program of inst.
func Build(inst *Instance, opts Options) (*Formulation, error) {
	if opts.NumBins < 1 || opts.NumBins > partition.MaxBins {
		return nil, errors.NewValidationError("number_of_bins", fmt.Sprintf("must be between 1 and %d, got %d", partition.MaxBins, opts.NumBins))
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingLinearized
	}
	if opts.Encoding != EncodingLinearized && opts.Encoding != EncodingBilinear {
		return nil, errors.NewValidationError("encoding", fmt.Sprintf("unknown encoding %q", opts.Encoding))
	}
	if opts.MaxPairs > 0 && len(inst.Pairs) > opts.MaxPairs {
		s := inst.Sizing(opts)
		return nil, errors.NewValidationError("max_pairs", fmt.Sprintf(
			"%d classification pairs exceed the limit of %d (%d words, %d patterns, %d vars, %d constraints)",
			s.Pairs, opts.MaxPairs, s.Words, s.Patterns, s.Vars, s.Constraints))
	}

	bins := opts.NumBins
	m := ilp.NewModel(fmt.Sprintf("partition-%d-bins", bins))
	f := &Formulation{Model: m, Instance: inst, Options: opts}

	f.X = make([][]ilp.VarID, inst.Alphabet.Len())
	for l := range f.X {
		f.X[l] = make([]ilp.VarID, bins)
		for b := 0; b < bins; b++ {
			f.X[l][b] = m.AddBinary(XName(l, b))
		}
		terms := make([]ilp.Term, bins)
		for b, v := range f.X[l] {
			terms[b] = ilp.Pos(1, v)
		}
		m.AddConstraint(ilp.Constraint{Name: fmt.Sprintf("one_bin[%d]", l), Terms: terms, Sense: ilp.Equal, RHS: 1})
	}

	if opts.BreakSymmetry {
		for l := 0; l < len(f.X) && l < bins-1; l++ {
			var terms []ilp.Term
			for b := l + 1; b < bins; b++ {
				terms = append(terms, ilp.Pos(1, f.X[l][b]))
			}
			m.AddConstraint(ilp.Constraint{Name: fmt.Sprintf("symmetry[%d]", l), Terms: terms, Sense: ilp.LessEqual, RHS: 0})
		}
	}

	f.IDWord = f.addIndicators("idw", inst.Words)
	f.IDPattern = f.addIndicators("idp", inst.Patterns)

	f.Eta = make([]ilp.VarID, len(inst.Pairs))
	objective := make([]ilp.Term, len(inst.Pairs))
	if opts.Encoding == EncodingLinearized {
		f.Helpers = make([][]ilp.VarID, len(inst.Pairs))
	}
	for k, pair := range inst.Pairs {
		eta := m.AddBinary(fmt.Sprintf("eta[%d,%d]", pair.Word, pair.Pattern))
		f.Eta[k] = eta
		objective[k] = ilp.Pos(1, eta)

		cover := ilp.Constraint{
			Name:  fmt.Sprintf("separated[%d,%d]", pair.Word, pair.Pattern),
			Terms: []ilp.Term{ilp.Pos(1, eta)},
			Sense: ilp.GreaterEqual,
			RHS:   1,
		}
		for b := 0; b < bins; b++ {
			idp := f.IDPattern[pair.Pattern][b]
			idw := f.IDWord[pair.Word][b]
			if opts.Encoding == EncodingBilinear {
				cover.Products = append(cover.Products, ilp.Product{
					Coeff: 1,
					A:     ilp.Lit{Var: idp},
					B:     ilp.Lit{Var: idw, Negated: true},
				})
				continue
			}
			h := m.AddContinuous(fmt.Sprintf("h[%d,%d,%d]", pair.Word, pair.Pattern, b), 0, 1)
			f.Helpers[k] = append(f.Helpers[k], h)
			m.AddConstraint(ilp.Constraint{
				Name:  fmt.Sprintf("h_pattern[%d,%d,%d]", pair.Word, pair.Pattern, b),
				Terms: []ilp.Term{ilp.Pos(1, h), ilp.Pos(-1, idp)},
				Sense: ilp.LessEqual,
			})
			m.AddConstraint(ilp.Constraint{
				Name:  fmt.Sprintf("h_word[%d,%d,%d]", pair.Word, pair.Pattern, b),
				Terms: []ilp.Term{ilp.Pos(1, h), ilp.Pos(1, idw)},
				Sense: ilp.LessEqual,
				RHS:   1,
			})
			cover.Terms = append(cover.Terms, ilp.Pos(1, h))
		}
		m.AddConstraint(cover)
	}
	m.SetObjective(ilp.Objective{Direction: ilp.Minimize, Terms: objective})
	return f, nil
}

// addIndicators creates id[item,b] linked to the OR of the item's letters.
func (f *Formulation) addIndicators(prefix string, items []corpus.Item) [][]ilp.VarID {
	m := f.Model
	bins := f.Options.NumBins
	ids := make([][]ilp.VarID, len(items))
	for i, item := range items {
		ids[i] = make([]ilp.VarID, bins)
		for b := 0; b < bins; b++ {
			id := m.AddBinary(fmt.Sprintf("%s[%d,%d]", prefix, i, b))
			ids[i][b] = id
			upper := ilp.Constraint{
				Name:  fmt.Sprintf("%s_or[%d,%d]", prefix, i, b),
				Terms: []ilp.Term{ilp.Pos(1, id)},
				Sense: ilp.LessEqual,
			}
			for _, l := range item.Letters {
				m.AddConstraint(ilp.Constraint{
					Name:  fmt.Sprintf("%s_set[%d,%d,%d]", prefix, i, l, b),
					Terms: []ilp.Term{ilp.Pos(1, f.X[l][b]), ilp.Pos(-1, id)},
					Sense: ilp.LessEqual,
				})
				upper.Terms = append(upper.Terms, ilp.Pos(-1, f.X[l][b]))
			}
			m.AddConstraint(upper)
		}
	}
	return ids
}

// Canonical relabels bins in order of first use along the alphabet, the form
// symmetry breaking admits. Bins used by no letter keep the highest labels.
func Canonical(m partition.Mapping, alphabet partition.Alphabet) (partition.Mapping, error) {
	numBins := m.NumBins()
	relabel := make([]int, numBins)
	for i := range relabel {
		relabel[i] = -1
	}
	next := 0
	for l := 0; l < alphabet.Len(); l++ {
		bin, ok := m.Bin(alphabet.Letter(l))
		if !ok {
			return partition.Mapping{}, errors.NewUnmappedByteError(alphabet.Letter(l), l, string(alphabet.Letters()))
		}
		if relabel[bin] < 0 {
			relabel[bin] = next
			next++
		}
	}
	for i := range relabel {
		if relabel[i] < 0 {
			relabel[i] = next
			next++
		}
	}
	out, err := partition.NewMapping(numBins)
	if err != nil {
		return partition.Mapping{}, err
	}
	for b := 0; b < 256; b++ {
		if bin, ok := m.Bin(byte(b)); ok {
			_ = out.Set(byte(b), relabel[bin])
		}
	}
	return out, nil
}

// Assignment returns the variable values a partition induces: x from the
// mapping, indicators as ORs, eta as the candidate-match test and helpers as
// idp·(1-idw). With symmetry breaking the mapping is relabeled canonically
// first. The result satisfies the model and its objective is the number of
// false-positive pairs.
func (f *Formulation) Assignment(m partition.Mapping) ([]float64, error) {
	if m.NumBins() != f.Options.NumBins {
		return nil, errors.NewValidationError("number_of_bins", fmt.Sprintf("mapping has %d bins, model has %d", m.NumBins(), f.Options.NumBins))
	}
	inst := f.Instance
	if f.Options.BreakSymmetry {
		canon, err := Canonical(m, inst.Alphabet)
		if err != nil {
			return nil, err
		}
		m = canon
	}

	values := make([]float64, f.Model.NumVars())
	for l := range f.X {
		bin, ok := m.Bin(inst.Alphabet.Letter(l))
		if !ok {
			return nil, errors.NewUnmappedByteError(inst.Alphabet.Letter(l), l, string(inst.Alphabet.Letters()))
		}
		values[f.X[l][bin]] = 1
	}

	itemPrints := func(items []corpus.Item, ids [][]ilp.VarID) ([]fingerprint.Fingerprint, error) {
		fps := make([]fingerprint.Fingerprint, len(items))
		for i, item := range items {
			fp, err := fingerprint.Build(item.Text, m)
			if err != nil {
				return nil, err
			}
			fps[i] = fp
			for b := range ids[i] {
				if fp&(1<<uint(b)) != 0 {
					values[ids[i][b]] = 1
				}
			}
		}
		return fps, nil
	}
	wordPrints, err := itemPrints(inst.Words, f.IDWord)
	if err != nil {
		return nil, err
	}
	patternPrints, err := itemPrints(inst.Patterns, f.IDPattern)
	if err != nil {
		return nil, err
	}

	for k, pair := range inst.Pairs {
		wfp, pfp := wordPrints[pair.Word], patternPrints[pair.Pattern]
		if fingerprint.IsCandidateMatch(wfp, pfp) {
			values[f.Eta[k]] = 1
		}
		if f.Helpers == nil {
			continue
		}
		for bin, h := range f.Helpers[k] {
			if pfp&(1<<uint(bin)) != 0 && wfp&(1<<uint(bin)) == 0 {
				values[h] = 1
			}
		}
	}
	return values, nil
}

package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Ratio is a non-negative quotient such as a false-positive rate or an
// optimality gap. It is +Inf when the denominator was empty, which JSON
// carries as the string "+Inf".
type Ratio float64

// Inf reports whether the ratio is the empty-negative-set sentinel.
func (r Ratio) Inf() bool {
	return math.IsInf(float64(r), 1)
}

func (r Ratio) String() string {
	if r.Inf() {
		return "+Inf"
	}
	return strconv.FormatFloat(float64(r), 'g', 6, 64)
}

// MarshalJSON encodes +Inf as a string.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.Inf() {
		return []byte(`"+Inf"`), nil
	}
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), -1) {
		return nil, fmt.Errorf("ratio %v is not representable", float64(r))
	}
	return json.Marshal(float64(r))
}

// UnmarshalJSON accepts a number or "+Inf".
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "+Inf" && s != "Infinity" {
			return fmt.Errorf("invalid ratio %q", s)
		}
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// FPRReport counts false positives and true negatives of one corpus under one
// partition. Negatives is the denominator of Ratio.
type FPRReport struct {
	FalsePositives int   `json:"false_positive_count"`
	TrueNegatives  int   `json:"true_negative_count"`
	Negatives      int   `json:"negative_count"`
	Ratio          Ratio `json:"ratio"`
}

// NewFPRReport derives the ratio from the counts.
func NewFPRReport(falsePositives, trueNegatives, negatives int) FPRReport {
	r := FPRReport{FalsePositives: falsePositives, TrueNegatives: trueNegatives, Negatives: negatives}
	if negatives == 0 {
		r.Ratio = Ratio(math.Inf(1))
	} else {
		r.Ratio = Ratio(float64(falsePositives) / float64(negatives))
	}
	return r
}

// Add sums counts and recomputes the ratio; ratios are never averaged.
func (r FPRReport) Add(o FPRReport) FPRReport {
	return NewFPRReport(r.FalsePositives+o.FalsePositives, r.TrueNegatives+o.TrueNegatives, r.Negatives+o.Negatives)
}

// Split names a (words, patterns) pairing scored by the evaluation harness.
type Split string

const (
	SplitTrain           Split = "train"
	SplitValidation      Split = "validation"
	SplitTest            Split = "test"
	SplitTableValidation Split = "table_validation"
	SplitTableTest       Split = "table_test"
)

// Splits lists every split in report order.
var Splits = []Split{SplitTrain, SplitValidation, SplitTest, SplitTableValidation, SplitTableTest}

// BaselineIndex tags the entry of the naive modulo partition.
const BaselineIndex = -1

// Entry is the evaluation of one checkpoint.
type Entry struct {
	Index     int                 `json:"index"`
	Timestamp float64             `json:"timestamp"`
	Objective float64             `json:"solution_value"`
	Skipped   bool                `json:"skipped,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Reports   map[Split]FPRReport `json:"reports,omitempty"`
}

// Package evaluation scores partitions against word/pattern corpora and
// replays optimizer trails into false-positive-rate curves.
package evaluation

import (
	"fmt"
	"strings"

	"github.com/utndatasystems/string-fingerprints/internal/fingerprint"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

// Score counts, over every (word, pattern) with the pattern not contained in
// the word, how many the fingerprints still report as candidate matches.
// Counts are summed over patterns before the ratio is taken.
func Score(words, patterns []string, m partition.Mapping) (model.FPRReport, error) {
	wordPrints, err := fingerprint.BuildAll(words, m)
	if err != nil {
		return model.FPRReport{}, err
	}
	var fps, tns, negs int
	for _, pattern := range patterns {
		pfp, err := fingerprint.Build(pattern, m)
		if err != nil {
			return model.FPRReport{}, err
		}
		var pf, pt, pn int
		for i, word := range words {
			contained := strings.Contains(word, pattern)
			candidate := fingerprint.IsCandidateMatch(wordPrints[i], pfp)
			switch {
			case contained && !candidate:
				return model.FPRReport{}, fmt.Errorf("fingerprint rejected %q although it occurs in %q", pattern, word)
			case contained:
			case candidate:
				pn++
				pf++
			default:
				pn++
				pt++
			}
		}
		if pf+pt != pn {
			return model.FPRReport{}, fmt.Errorf("pattern %q: %d false positives + %d true negatives != %d negatives", pattern, pf, pt, pn)
		}
		fps += pf
		tns += pt
		negs += pn
	}
	return model.NewFPRReport(fps, tns, negs), nil
}

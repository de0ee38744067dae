// Package fingerprint builds and compares bin-occupancy bitmasks of strings.
//
// Bit b of a fingerprint is set iff some byte of the string falls into bin b.
// A pattern contained in a word can only set bins the word also sets, so
// IsCandidateMatch never rejects a true substring; distinct bytes sharing a
// bin are what produce false positives.
package fingerprint

import (
	"math"
	"math/bits"
	"sort"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
)

// Fingerprint is a bitmask over at most partition.MaxBins bins.
type Fingerprint uint64

// Build computes the fingerprint of text. Every byte of text must be mapped.
func Build(text string, m partition.Mapping) (Fingerprint, error) {
	var fp Fingerprint
	for i := 0; i < len(text); i++ {
		bin, ok := m.Bin(text[i])
		if !ok {
			return 0, errors.NewUnmappedByteError(text[i], i, text)
		}
		fp |= 1 << uint(bin)
	}
	return fp, nil
}

// BuildAll fingerprints every text, failing on the first unmapped byte.
func BuildAll(texts []string, m partition.Mapping) ([]Fingerprint, error) {
	fps := make([]Fingerprint, len(texts))
	for i, text := range texts {
		fp, err := Build(text, m)
		if err != nil {
			return nil, err
		}
		fps[i] = fp
	}
	return fps, nil
}

// IsCandidateMatch reports whether every bin set in pattern is also set in word.
func IsCandidateMatch(word, pattern Fingerprint) bool {
	return word&pattern == pattern
}

// Density is the number of set bins.
func Density(fp Fingerprint) int {
	return bits.OnesCount64(uint64(fp))
}

// Summary aggregates densities over a corpus.
type Summary struct {
	Count   int     `json:"count"`
	Avg     float64 `json:"avg"`
	GeoMean float64 `json:"geo_mean"`
	Median  float64 `json:"median"`
}

// geoFloor keeps zero densities (empty strings) from collapsing the geometric mean.
const geoFloor = 1e-4

// Summarize returns the arithmetic mean, geometric mean and median of values.
func Summarize(values []int) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	var sum, logSum float64
	for _, v := range sorted {
		sum += float64(v)
		logSum += math.Log(math.Max(float64(v), geoFloor))
	}
	n := len(sorted)
	s := Summary{
		Count:   n,
		Avg:     sum / float64(n),
		GeoMean: math.Exp(logSum / float64(n)),
	}
	if n%2 == 1 {
		s.Median = float64(sorted[n/2])
	} else {
		s.Median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}
	return s
}

// DensitySummary fingerprints texts under m and summarizes their densities.
func DensitySummary(texts []string, m partition.Mapping) (Summary, error) {
	fps, err := BuildAll(texts, m)
	if err != nil {
		return Summary{}, err
	}
	densities := make([]int, len(fps))
	for i, fp := range fps {
		densities[i] = Density(fp)
	}
	return Summarize(densities), nil
}

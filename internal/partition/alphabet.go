// Package partition models the byte alphabet and its partition into bins.
//
// A partition has two interchangeable views. Mapping is the direct byte->bin
// lookup used on hot paths; Partition groups bytes per bin and is the form
// written to disk and exchanged over the API. Revert and Partition.Mapping
// convert between them without loss.
package partition

import "sort"

// Alphabet is an ordered set of byte values. The position of a byte in the
// alphabet is its letter index in the optimization model.
type Alphabet struct {
	letters []byte
	index   [256]int16 // position+1, 0 when absent
}

// NewAlphabet builds an alphabet from arbitrary bytes, dropping duplicates and
// sorting ascending.
func NewAlphabet(letters []byte) Alphabet {
	var seen [256]bool
	for _, b := range letters {
		seen[b] = true
	}
	var a Alphabet
	for i := 0; i < 256; i++ {
		if seen[i] {
			a.letters = append(a.letters, byte(i))
			a.index[i] = int16(len(a.letters))
		}
	}
	return a
}

// Full returns the alphabet of all 256 byte values.
func Full() Alphabet {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	return NewAlphabet(all)
}

// Observed returns the alphabet of the bytes occurring in the given texts.
func Observed(corpora ...[]string) Alphabet {
	var bytes []byte
	var seen [256]bool
	for _, texts := range corpora {
		for _, text := range texts {
			for i := 0; i < len(text); i++ {
				if !seen[text[i]] {
					seen[text[i]] = true
					bytes = append(bytes, text[i])
				}
			}
		}
	}
	sort.Slice(bytes, func(i, j int) bool { return bytes[i] < bytes[j] })
	return NewAlphabet(bytes)
}

// Len returns the number of letters.
func (a Alphabet) Len() int {
	return len(a.letters)
}

// Letter returns the byte at letter index i.
func (a Alphabet) Letter(i int) byte {
	return a.letters[i]
}

// Letters returns a copy of the letters in order.
func (a Alphabet) Letters() []byte {
	out := make([]byte, len(a.letters))
	copy(out, a.letters)
	return out
}

// Index returns the letter index of b.
func (a Alphabet) Index(b byte) (int, bool) {
	pos := a.index[b]
	if pos == 0 {
		return 0, false
	}
	return int(pos) - 1, true
}

// Contains reports whether b is a letter of the alphabet.
func (a Alphabet) Contains(b byte) bool {
	return a.index[b] != 0
}

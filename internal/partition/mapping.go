package partition

import (
	"fmt"
	"math/rand/v2"

	"github.com/zeebo/xxh3"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
)

// MaxBins is the widest fingerprint supported.
const MaxBins = 64

// Mapping is a direct byte->bin lookup. Bytes may be left unmapped; the zero
// value maps nothing and has no bins.
type Mapping struct {
	table   [256]uint8 // bin+1, 0 when unmapped
	numBins int
}

func checkBins(numBins int) error {
	if numBins < 1 || numBins > MaxBins {
		return errors.NewValidationError("number_of_bins", fmt.Sprintf("must be between 1 and %d, got %d", MaxBins, numBins))
	}
	return nil
}

// NewMapping returns an empty mapping over numBins bins.
func NewMapping(numBins int) (Mapping, error) {
	if err := checkBins(numBins); err != nil {
		return Mapping{}, err
	}
	return Mapping{numBins: numBins}, nil
}

// Default maps every byte i to bin i mod numBins. It is the naive baseline
// optimized partitions are compared against.
func Default(numBins int) (Mapping, error) {
	m, err := NewMapping(numBins)
	if err != nil {
		return Mapping{}, err
	}
	for i := 0; i < 256; i++ {
		m.table[i] = uint8(i%numBins) + 1
	}
	return m, nil
}

// Random shuffles all 256 bytes and deals them round-robin into numBins bins.
func Random(numBins int, rng *rand.Rand) (Mapping, error) {
	m, err := NewMapping(numBins)
	if err != nil {
		return Mapping{}, err
	}
	for i, b := range rng.Perm(256) {
		m.table[b] = uint8(i%numBins) + 1
	}
	return m, nil
}

// Set assigns b to bin, replacing any previous assignment.
func (m *Mapping) Set(b byte, bin int) error {
	if bin < 0 || bin >= m.numBins {
		return errors.NewValidationError("bin", fmt.Sprintf("bin %d out of range [0, %d)", bin, m.numBins))
	}
	m.table[b] = uint8(bin) + 1
	return nil
}

// Bin returns the bin of b.
func (m Mapping) Bin(b byte) (int, bool) {
	v := m.table[b]
	if v == 0 {
		return 0, false
	}
	return int(v) - 1, true
}

// NumBins returns the number of bins.
func (m Mapping) NumBins() int {
	return m.numBins
}

// Len returns the number of mapped bytes.
func (m Mapping) Len() int {
	n := 0
	for _, v := range m.table {
		if v != 0 {
			n++
		}
	}
	return n
}

// Total reports whether every byte is mapped.
func (m Mapping) Total() bool {
	return m.Len() == 256
}

// Equal reports whether both mappings assign the same bins to the same bytes.
func (m Mapping) Equal(o Mapping) bool {
	return m == o
}

// Complete fills the bytes m leaves unmapped from fallback. Fallback bins
// outside m's range wrap modulo m's bin count.
func (m Mapping) Complete(fallback Mapping) Mapping {
	out := m
	if out.numBins == 0 {
		return out
	}
	for i, v := range out.table {
		if v != 0 {
			continue
		}
		if bin, ok := fallback.Bin(byte(i)); ok {
			out.table[i] = uint8(bin%out.numBins) + 1
		}
	}
	return out
}

// Key is a 64-bit content hash of the mapping.
func (m Mapping) Key() uint64 {
	var buf [257]byte
	copy(buf[:256], m.table[:])
	buf[256] = byte(m.numBins)
	return xxh3.Hash(buf[:])
}

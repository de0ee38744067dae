package partition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
)

// Partition groups bytes by bin: Partition[b] lists the bytes of bin b in
// ascending order. Bins may be empty.
type Partition [][]byte

// Revert groups a mapping's bytes by bin.
func Revert(m Mapping) Partition {
	p := make(Partition, m.NumBins())
	for i := 0; i < 256; i++ {
		if bin, ok := m.Bin(byte(i)); ok {
			p[bin] = append(p[bin], byte(i))
		}
	}
	return p
}

// NumBins returns the number of bins, empty ones included.
func (p Partition) NumBins() int {
	return len(p)
}

// Mapping converts the grouping back to a direct lookup. A byte listed in
// more than one bin makes the partition invalid.
func (p Partition) Mapping() (Mapping, error) {
	m, err := NewMapping(len(p))
	if err != nil {
		return Mapping{}, err
	}
	for bin, members := range p {
		for _, b := range members {
			if prev, ok := m.Bin(b); ok && prev != bin {
				return Mapping{}, errors.NewInvalidPartitionError(b, []int{prev, bin})
			}
			m.table[b] = uint8(bin) + 1
		}
	}
	return m, nil
}

// Clone returns a deep copy.
func (p Partition) Clone() Partition {
	if p == nil {
		return nil
	}
	out := make(Partition, len(p))
	for i, members := range p {
		out[i] = append([]byte(nil), members...)
	}
	return out
}

// Normalize sorts and de-duplicates the bytes of every bin in place.
func (p Partition) Normalize() {
	for i, members := range p {
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		out := members[:0]
		for j, b := range members {
			if j == 0 || b != members[j-1] {
				out = append(out, b)
			}
		}
		p[i] = out
	}
}

func (p Partition) String() string {
	var sb strings.Builder
	for bin, members := range p {
		if bin > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:[", bin)
		for i, b := range members {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(letterString(b))
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

func printable(b byte) bool {
	return b >= 0x20 && b < 0x7f
}

func letterString(b byte) string {
	if printable(b) {
		return string(rune(b))
	}
	return fmt.Sprintf("0x%02x", b)
}

// MarshalJSON writes {"<bin>": [letters...]} with printable ASCII bytes as
// one-character strings and every other byte as its integer value.
func (p Partition) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for bin, members := range p {
		if bin > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:[", strconv.Itoa(bin))
		for i, b := range members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if printable(b) {
				enc, err := json.Marshal(string(rune(b)))
				if err != nil {
					return nil, err
				}
				buf.Write(enc)
			} else {
				buf.WriteString(strconv.Itoa(int(b)))
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts bins keyed by their decimal index holding
// one-byte strings or integers in [0, 255].
func (p *Partition) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	numBins := 0
	for key := range raw {
		bin, err := strconv.Atoi(key)
		if err != nil || bin < 0 || bin >= MaxBins {
			return errors.NewValidationError("partition", fmt.Sprintf("invalid bin key %q", key))
		}
		if bin+1 > numBins {
			numBins = bin + 1
		}
	}
	out := make(Partition, numBins)
	for key, members := range raw {
		bin, _ := strconv.Atoi(key)
		for _, member := range members {
			b, err := decodeLetter(member)
			if err != nil {
				return fmt.Errorf("bin %s: %w", key, err)
			}
			out[bin] = append(out[bin], b)
		}
	}
	out.Normalize()
	*p = out
	return nil
}

func decodeLetter(raw json.RawMessage) (byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if len(s) != 1 {
			return 0, errors.NewValidationError("partition", fmt.Sprintf("letter %q is not a single byte", s))
		}
		return s[0], nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errors.NewValidationError("partition", fmt.Sprintf("letter %s is neither a character nor an integer", string(raw)))
	}
	if n < 0 || n > 255 {
		return 0, errors.NewValidationError("partition", fmt.Sprintf("byte value %d out of range", n))
	}
	return byte(n), nil
}

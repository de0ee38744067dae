// Package corpus loads word and pattern corpora and prepares them for
// optimization: sampling, held-out selection, positional indexing and the
// classification pairs that can turn into false positives.
package corpus

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
)

// maxLineSize bounds a single corpus line.
const maxLineSize = 1 << 20

// ReadLines reads a newline-delimited file. Only the line terminator is
// stripped; leading and trailing spaces are part of the item.
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path) // #nosec G304 -- corpus paths come from run configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	return lines, nil
}

// FilterPrintableASCII keeps the texts made only of printable ASCII bytes
// and returns how many were dropped.
func FilterPrintableASCII(texts []string) ([]string, int) {
	kept := make([]string, 0, len(texts))
	for _, text := range texts {
		if isPrintableASCII(text) {
			kept = append(kept, text)
		}
	}
	return kept, len(texts) - len(kept)
}

func isPrintableASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 || text[i] >= 0x7f {
			return false
		}
	}
	return true
}

// ShuffledBlock shuffles items with a seeded generator and returns block
// number block of size blockSize. When blockSize covers the input, the
// input is returned unshuffled.
func ShuffledBlock(items []string, seed uint64, blockSize, block int) ([]string, error) {
	if blockSize <= 0 || blockSize >= len(items) {
		return append([]string(nil), items...), nil
	}
	start := block * blockSize
	if block < 0 || start >= len(items) {
		return nil, errors.NewValidationError("block", fmt.Sprintf("block %d of size %d starts past the %d items", block, blockSize, len(items)))
	}
	shuffled := append([]string(nil), items...)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	end := min(start+blockSize, len(shuffled))
	return shuffled[start:end], nil
}

// Subtract removes one occurrence of every element of train from full,
// keeping the order of what remains. train must be a sub-multiset of full.
func Subtract(full, train []string) ([]string, error) {
	available := make(map[string]int, len(full))
	for _, item := range full {
		available[item]++
	}
	remove := make(map[string]int, len(train))
	for _, item := range train {
		remove[item]++
	}
	for item, needed := range remove {
		if needed > available[item] {
			return nil, errors.NewSubsetViolationError(item, needed, available[item])
		}
	}

	rest := make([]string, 0, len(full)-len(train))
	for _, item := range full {
		if remove[item] > 0 {
			remove[item]--
			continue
		}
		rest = append(rest, item)
	}
	return rest, nil
}

// Item is a corpus string indexed against an alphabet.
type Item struct {
	Text string
	// Positions holds the letter index of every byte, in order.
	Positions []int
	// Letters holds the distinct letter indexes, ascending.
	Letters []int
}

// Items indexes texts against alphabet.
func Items(texts []string, alphabet partition.Alphabet) ([]Item, error) {
	items := make([]Item, len(texts))
	for i, text := range texts {
		item := Item{Text: text, Positions: make([]int, len(text))}
		seen := make([]bool, alphabet.Len())
		for j := 0; j < len(text); j++ {
			idx, ok := alphabet.Index(text[j])
			if !ok {
				return nil, errors.NewUnmappedByteError(text[j], j, text)
			}
			item.Positions[j] = idx
			seen[idx] = true
		}
		for idx, ok := range seen {
			if ok {
				item.Letters = append(item.Letters, idx)
			}
		}
		items[i] = item
	}
	return items, nil
}

// Pair indexes a word and a pattern the word does not contain.
type Pair struct {
	Word    int
	Pattern int
}

// ClassificationPairs lists every (word, pattern) where the pattern is not a
// substring of the word, pattern-major.
func ClassificationPairs(words, patterns []string) []Pair {
	var pairs []Pair
	for p, pattern := range patterns {
		for w, word := range words {
			if !strings.Contains(word, pattern) {
				pairs = append(pairs, Pair{Word: w, Pattern: p})
			}
		}
	}
	return pairs
}

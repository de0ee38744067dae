package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utndatasystems/string-fingerprints/internal/corpus"
	"github.com/utndatasystems/string-fingerprints/internal/evaluation"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/internal/persistence"
)

func (c *cli) newScoreCmd() *cobra.Command {
	var (
		partitionPath string
		numBins       int
		wordsPath     string
		patternsPath  string
		filterASCII   bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the false-positive rate of a partition on a corpus",
		Long: `score fingerprints every word and pattern under a partition and counts
the pattern/word pairs whose fingerprints match although the pattern is
not a substring of the word. Without --partition the modulo partition
into --bins bins is scored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := loadMapping(partitionPath, numBins)
			if err != nil {
				return err
			}
			words, err := corpus.ReadLines(wordsPath)
			if err != nil {
				return err
			}
			patterns, err := corpus.ReadLines(patternsPath)
			if err != nil {
				return err
			}
			if filterASCII {
				var droppedWords, droppedPatterns int
				words, droppedWords = corpus.FilterPrintableASCII(words)
				patterns, droppedPatterns = corpus.FilterPrintableASCII(patterns)
				c.logger.Debug("Dropped non-ASCII lines", "words", droppedWords, "patterns", droppedPatterns)
			}

			report, err := evaluation.Score(words, patterns, mapping)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVarP(&partitionPath, "partition", "p", "", "JSON partition ({\"0\": [letters], ...})")
	cmd.Flags().IntVarP(&numBins, "bins", "b", 8, "Bins of the modulo partition when no --partition is given")
	cmd.Flags().StringVarP(&wordsPath, "words", "w", "", "Newline-delimited words")
	cmd.Flags().StringVar(&patternsPath, "patterns", "", "Newline-delimited patterns")
	cmd.Flags().BoolVar(&filterASCII, "filter-ascii", false, "Drop lines with bytes outside printable ASCII")
	_ = cmd.MarkFlagRequired("words")
	_ = cmd.MarkFlagRequired("patterns")
	return cmd
}

func loadMapping(path string, numBins int) (partition.Mapping, error) {
	if path == "" {
		return partition.Default(numBins)
	}
	var p partition.Partition
	if err := persistence.LoadJSON(path, &p); err != nil {
		return partition.Mapping{}, fmt.Errorf("reading partition %s: %w", path, err)
	}
	return p.Mapping()
}

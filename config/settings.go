// Package config provides the configuration of an optimisation run: which
// corpora to load and sample, how to build and solve the partition model, and
// which splits to evaluate the resulting trail on.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("90s") in YAML
// and JSON. Negative durations mean "no limit".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// CorpusConfig names the newline-delimited input files.
type CorpusConfig struct {
	WordsFile    string `yaml:"words_file" json:"words_file"`
	PatternsFile string `yaml:"patterns_file" json:"patterns_file"`
	// TableWordsFile is an optional second word corpus for table-level splits.
	TableWordsFile string `yaml:"table_words_file" json:"table_words_file"`
	FilterASCII    bool   `yaml:"filter_printable_ascii" json:"filter_printable_ascii"`
}

// SamplingConfig selects the training subsets. Each population is shuffled
// with Seed and cut into blocks of the given size; block index Block is used.
// A block size of zero takes the whole population.
type SamplingConfig struct {
	Seed             uint64 `yaml:"seed" json:"seed"`
	WordBlockSize    int    `yaml:"word_block_size" json:"word_block_size"`
	WordBlock        int    `yaml:"word_block" json:"word_block"`
	PatternBlockSize int    `yaml:"pattern_block_size" json:"pattern_block_size"`
	PatternBlock     int    `yaml:"pattern_block" json:"pattern_block"`
	TableBlockSize   int    `yaml:"table_block_size" json:"table_block_size"`
	TableBlock       int    `yaml:"table_block" json:"table_block"`
}

// ModelConfig shapes the integer program.
type ModelConfig struct {
	NumBins int `yaml:"number_of_bins" json:"number_of_bins"`
	// Encoding is "linearized" or "bilinear".
	Encoding string `yaml:"encoding" json:"encoding"`
	// Alphabet is "full" (all 256 bytes) or "observed" (bytes of the training corpus).
	Alphabet      string `yaml:"alphabet" json:"alphabet"`
	BreakSymmetry bool   `yaml:"break_symmetry" json:"break_symmetry"`
	// MaxPairs rejects larger instances before building; 0 disables the guard.
	MaxPairs int `yaml:"max_pairs" json:"max_pairs"`
}

// SolverConfig selects and bounds the backend.
type SolverConfig struct {
	// Backend is "gini", "gophersat" or "random" (random-search baseline).
	// gophersat cannot be interrupted and keeps searching past TimeLimit.
	Backend          string   `yaml:"backend" json:"backend"`
	TimeLimit        Duration `yaml:"time_limit" json:"time_limit"`
	Threads          int      `yaml:"threads" json:"threads"`
	RecordIncumbents bool     `yaml:"record_incumbents" json:"record_incumbents"`
	// Iterations is the number of partitions sampled by the random backend.
	Iterations int `yaml:"iterations" json:"iterations"`
}

// EvaluationConfig selects the splits scored for every checkpoint.
type EvaluationConfig struct {
	// Workers bounds concurrent scorings; 0 uses one worker per CPU.
	Workers    int  `yaml:"workers" json:"workers"`
	Train      bool `yaml:"train" json:"train"`
	Validation bool `yaml:"validation" json:"validation"`
	Test       bool `yaml:"test" json:"test"`
	Table      bool `yaml:"table" json:"table"`
	// Budget drops checkpoints found later than this; 0 keeps every checkpoint.
	Budget   Duration `yaml:"budget" json:"budget"`
	Baseline bool     `yaml:"baseline" json:"baseline"`
}

// Any reports whether any split or the baseline is selected.
func (ec EvaluationConfig) Any() bool {
	return ec.Train || ec.Validation || ec.Test || ec.Table || ec.Baseline
}

// RunConfig is the full description of one optimisation run.
type RunConfig struct {
	Name       string           `yaml:"name" json:"name"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Sampling   SamplingConfig   `yaml:"sampling" json:"sampling"`
	Model      ModelConfig      `yaml:"model" json:"model"`
	Solver     SolverConfig     `yaml:"solver" json:"solver"`
	Evaluation EvaluationConfig `yaml:"evaluation" json:"evaluation"`
}

// Default returns a configuration sized for tractable solves.
func Default() RunConfig {
	return RunConfig{
		Corpus: CorpusConfig{FilterASCII: true},
		Sampling: SamplingConfig{
			WordBlockSize:    30,
			PatternBlockSize: 10,
		},
		Model: ModelConfig{
			NumBins:       8,
			Encoding:      "linearized",
			Alphabet:      "full",
			BreakSymmetry: true,
			MaxPairs:      5000,
		},
		Solver: SolverConfig{
			Backend:          "gini",
			TimeLimit:        Duration(time.Minute),
			Threads:          1,
			RecordIncumbents: true,
			Iterations:       1000,
		},
		Evaluation: EvaluationConfig{
			Train:      true,
			Validation: true,
			Baseline:   true,
		},
	}
}

// Load reads a YAML (or JSON) file over the defaults and applies
// FINGERPRINTS_* environment overrides.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *RunConfig) error {
	if v := os.Getenv("FINGERPRINTS_TIME_LIMIT"); v != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("FINGERPRINTS_TIME_LIMIT: %w", err)
		}
		cfg.Solver.TimeLimit = d
	}
	if v := os.Getenv("FINGERPRINTS_THREADS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FINGERPRINTS_THREADS: %w", err)
		}
		cfg.Solver.Threads = i
	}
	if v := os.Getenv("FINGERPRINTS_BACKEND"); v != "" {
		cfg.Solver.Backend = v
	}
	return nil
}

// Validate returns every problem found in the configuration.
func (c *RunConfig) Validate() []string {
	var problems []string

	if strings.TrimSpace(c.Corpus.WordsFile) == "" {
		problems = append(problems, "corpus.words_file is required")
	}
	if strings.TrimSpace(c.Corpus.PatternsFile) == "" {
		problems = append(problems, "corpus.patterns_file is required")
	}
	if c.Evaluation.Table && c.Corpus.TableWordsFile == "" {
		problems = append(problems, "evaluation.table requires corpus.table_words_file")
	}

	problems = append(problems, checkBlock("word", c.Sampling.WordBlockSize, c.Sampling.WordBlock)...)
	problems = append(problems, checkBlock("pattern", c.Sampling.PatternBlockSize, c.Sampling.PatternBlock)...)
	problems = append(problems, checkBlock("table", c.Sampling.TableBlockSize, c.Sampling.TableBlock)...)

	if c.Model.NumBins < 1 || c.Model.NumBins > 64 {
		problems = append(problems, fmt.Sprintf("model.number_of_bins must be between 1 and 64, got %d", c.Model.NumBins))
	}
	if !oneOf(c.Model.Encoding, "linearized", "bilinear") {
		problems = append(problems, "Invalid model.encoding '"+c.Model.Encoding+"' (must be 'linearized' or 'bilinear')")
	}
	if !oneOf(c.Model.Alphabet, "full", "observed") {
		problems = append(problems, "Invalid model.alphabet '"+c.Model.Alphabet+"' (must be 'full' or 'observed')")
	}
	if c.Model.MaxPairs < 0 {
		problems = append(problems, "model.max_pairs cannot be negative")
	}

	if !oneOf(c.Solver.Backend, "gophersat", "gini", "random") {
		problems = append(problems, "Invalid solver.backend '"+c.Solver.Backend+"' (must be 'gophersat', 'gini' or 'random')")
	}
	if c.Solver.Backend == "random" && c.Solver.Iterations < 1 {
		problems = append(problems, "solver.iterations must be positive for the random backend")
	}
	if c.Solver.Threads < 0 {
		problems = append(problems, "solver.threads cannot be negative")
	}

	if c.Evaluation.Workers < 0 {
		problems = append(problems, "evaluation.workers cannot be negative")
	}
	if c.Evaluation.Budget < 0 {
		problems = append(problems, "evaluation.budget cannot be negative")
	}
	return problems
}

func checkBlock(name string, size, block int) []string {
	var problems []string
	if size < 0 {
		problems = append(problems, fmt.Sprintf("sampling.%s_block_size cannot be negative", name))
	}
	if block < 0 {
		problems = append(problems, fmt.Sprintf("sampling.%s_block cannot be negative", name))
	}
	return problems
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

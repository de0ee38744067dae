package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/anytime"
	"github.com/utndatasystems/string-fingerprints/internal/corpus"
	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/evaluation"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
	"github.com/utndatasystems/string-fingerprints/internal/ilp/ginisat"
	"github.com/utndatasystems/string-fingerprints/internal/ilp/pbsat"
	"github.com/utndatasystems/string-fingerprints/internal/optimizer"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

// BackendRandom selects the random-search baseline instead of an ILP backend.
const BackendRandom = "random"

// Prepared holds the corpora of a run after loading and sampling.
type Prepared struct {
	Data     evaluation.Data
	Alphabet partition.Alphabet
	// Fallback completes partitions over bytes outside Alphabet; nil for the full alphabet.
	Fallback *partition.Mapping
	Dropped  int
	LoadTime time.Duration
}

// Optimized is the result of one solve.
type Optimized struct {
	Trail  model.Trail
	Solver model.SolverSummary
	Sizing optimizer.Sizing
}

// Prepare loads the corpora named by cfg and draws the training subsets.
// Test patterns are the patterns not drawn for training.
func Prepare(cfg config.RunConfig) (*Prepared, error) {
	start := time.Now()
	prep := &Prepared{}

	words, dropped, err := loadCorpus(cfg.Corpus.WordsFile, cfg.Corpus.FilterASCII)
	if err != nil {
		return nil, err
	}
	prep.Dropped += dropped
	patterns, dropped, err := loadCorpus(cfg.Corpus.PatternsFile, cfg.Corpus.FilterASCII)
	if err != nil {
		return nil, err
	}
	prep.Dropped += dropped

	s := cfg.Sampling
	trainWords, err := corpus.ShuffledBlock(words, s.Seed, s.WordBlockSize, s.WordBlock)
	if err != nil {
		return nil, fmt.Errorf("sampling words: %w", err)
	}
	trainPatterns, err := corpus.ShuffledBlock(patterns, s.Seed, s.PatternBlockSize, s.PatternBlock)
	if err != nil {
		return nil, fmt.Errorf("sampling patterns: %w", err)
	}
	testPatterns, err := corpus.Subtract(patterns, trainPatterns)
	if err != nil {
		return nil, fmt.Errorf("deriving test patterns: %w", err)
	}

	prep.Data = evaluation.Data{
		TrainWords:    trainWords,
		TrainPatterns: trainPatterns,
		AllWords:      words,
		TestPatterns:  testPatterns,
	}

	if cfg.Corpus.TableWordsFile != "" {
		table, dropped, err := loadCorpus(cfg.Corpus.TableWordsFile, cfg.Corpus.FilterASCII)
		if err != nil {
			return nil, err
		}
		prep.Dropped += dropped
		prep.Data.TableWords, err = corpus.ShuffledBlock(table, s.Seed, s.TableBlockSize, s.TableBlock)
		if err != nil {
			return nil, fmt.Errorf("sampling table words: %w", err)
		}
	}

	switch cfg.Model.Alphabet {
	case "observed":
		prep.Alphabet = partition.Observed(trainWords, trainPatterns)
		fallback, err := partition.Default(cfg.Model.NumBins)
		if err != nil {
			return nil, err
		}
		prep.Fallback = &fallback
	default:
		prep.Alphabet = partition.Full()
	}

	prep.LoadTime = time.Since(start)
	return prep, nil
}

func loadCorpus(path string, filter bool) ([]string, int, error) {
	lines, err := corpus.ReadLines(path)
	if err != nil {
		return nil, 0, err
	}
	if !filter {
		return lines, 0, nil
	}
	kept, dropped := corpus.FilterPrintableASCII(lines)
	return kept, dropped, nil
}

// NewBackend returns the ILP backend registered under name.
func NewBackend(name string, logger *slog.Logger) (ilp.Backend, error) {
	switch name {
	case pbsat.Name:
		return pbsat.New(logger), nil
	case ginisat.Name:
		return ginisat.New(logger), nil
	default:
		return nil, errors.NewValidationError("solver.backend", fmt.Sprintf("unknown backend '%s'", name))
	}
}

// Optimize searches a partition for the training corpora of prep and turns
// the search into a checkpoint trail. The trail offset covers loading and
// model construction.
func Optimize(ctx context.Context, prep *Prepared, cfg config.RunConfig, logger *slog.Logger) (*Optimized, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Solver.Backend == BackendRandom {
		return optimizeRandom(ctx, prep, cfg)
	}

	start := time.Now()
	inst, err := optimizer.NewInstance(prep.Data.TrainWords, prep.Data.TrainPatterns, prep.Alphabet)
	if err != nil {
		return nil, err
	}
	opts := optimizer.Options{
		NumBins:       cfg.Model.NumBins,
		Encoding:      optimizer.Encoding(cfg.Model.Encoding),
		BreakSymmetry: cfg.Model.BreakSymmetry,
		MaxPairs:      cfg.Model.MaxPairs,
	}
	f, err := optimizer.Build(inst, opts)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(cfg.Solver.Backend, logger)
	if err != nil {
		return nil, err
	}
	offset := prep.LoadTime + time.Since(start)

	run, err := anytime.NewDriver(backend, logger).Solve(ctx, f.Model, anytime.Options{
		TimeLimit:        cfg.Solver.TimeLimit.Std(),
		Threads:          cfg.Solver.Threads,
		RecordIncumbents: cfg.Solver.RecordIncumbents,
	})
	if err != nil {
		return nil, err
	}
	if run.Outcome.Status == ilp.StatusInfeasible {
		return nil, errors.NewSolverError(run.Backend, run.Outcome.Status.String(), errors.ErrSolverInfeasible)
	}

	trail, err := run.Export(f.Model, prep.Alphabet, cfg.Model.NumBins, prep.Fallback, offset)
	if err != nil {
		return nil, err
	}
	snap := run.ExtractSolution(f.Model)
	return &Optimized{
		Trail: trail,
		Solver: model.SolverSummary{
			Backend:    run.Backend,
			Status:     snap.Status.String(),
			Objective:  snap.Objective,
			Bound:      snap.Bound,
			Gap:        snap.Gap,
			Incumbents: len(run.Trail),
			Runtime:    run.Outcome.Runtime,
		},
		Sizing: inst.Sizing(opts),
	}, nil
}

func optimizeRandom(ctx context.Context, prep *Prepared, cfg config.RunConfig) (*Optimized, error) {
	start := time.Now()
	trail, err := optimizer.RandomSearch(ctx, prep.Data.TrainWords, prep.Data.TrainPatterns,
		cfg.Model.NumBins, cfg.Solver.Iterations, cfg.Sampling.Seed)
	if err != nil {
		return nil, err
	}
	trail.OffsetSeconds = prep.LoadTime.Seconds()
	trail.Gap = model.Ratio(math.Inf(1))

	out := &Optimized{
		Trail: trail,
		Solver: model.SolverSummary{
			Backend:    BackendRandom,
			Status:     trail.Status,
			Gap:        trail.Gap,
			Incumbents: len(trail.Checkpoints),
			Runtime:    time.Since(start),
		},
		Sizing: optimizer.Sizing{
			Letters:  prep.Alphabet.Len(),
			Bins:     cfg.Model.NumBins,
			Words:    len(prep.Data.TrainWords),
			Patterns: len(prep.Data.TrainPatterns),
			Pairs:    len(corpus.ClassificationPairs(prep.Data.TrainWords, prep.Data.TrainPatterns)),
		},
	}
	if len(trail.Checkpoints) > 0 {
		out.Solver.Objective = trail.Checkpoints[len(trail.Checkpoints)-1].Objective
	}
	return out, nil
}

// EvaluationOptions converts an evaluation section into harness options.
func EvaluationOptions(ec config.EvaluationConfig, numBins int) evaluation.Options {
	opts := evaluation.Options{
		Splits: evaluation.Splits{
			Train:      ec.Train,
			Validation: ec.Validation,
			Test:       ec.Test,
			Table:      ec.Table,
		},
		Budget: ec.Budget.Std(),
	}
	if ec.Baseline {
		opts.BaselineBins = numBins
	}
	return opts
}

// Evaluate scores every checkpoint of trail on the splits selected by ec.
func Evaluate(ctx context.Context, prep *Prepared, trail model.Trail, ec config.EvaluationConfig, numBins int, logger *slog.Logger) ([]model.Entry, error) {
	h := evaluation.NewHarness(ec.Workers, logger)
	return h.EvaluateTrail(ctx, trail, prep.Data, EvaluationOptions(ec, numBins))
}

func (o *Optimized) stats(prep *Prepared) model.RunStats {
	return model.RunStats{
		Letters:         o.Sizing.Letters,
		Words:           len(prep.Data.TrainWords),
		Patterns:        len(prep.Data.TrainPatterns),
		AllWords:        len(prep.Data.AllWords),
		TestPatterns:    len(prep.Data.TestPatterns),
		TableWords:      len(prep.Data.TableWords),
		Pairs:           o.Sizing.Pairs,
		Vars:            o.Sizing.Vars,
		Constraints:     o.Sizing.Constraints,
		DroppedNonASCII: prep.Dropped,
	}
}

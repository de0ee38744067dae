package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/metrics"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

var tracer = otel.Tracer("fingerprints.evaluation")

// Data are the corpora a trail is scored against. Train words and patterns
// are the optimizer's input; AllWords is the word population the training
// words were sampled from; TestPatterns are patterns held out of training;
// TableWords is a second, larger word corpus.
type Data struct {
	TrainWords    []string
	TrainPatterns []string
	AllWords      []string
	TestPatterns  []string
	TableWords    []string
}

// Splits selects the reports computed per checkpoint.
type Splits struct {
	Train      bool `json:"train" yaml:"train"`
	Validation bool `json:"validation" yaml:"validation"`
	Test       bool `json:"test" yaml:"test"`
	Table      bool `json:"table" yaml:"table"`
}

// corpus pairs the words and patterns of one split.
type corpus struct {
	split    model.Split
	words    []string
	patterns []string
}

// corpora lists the splits enabled in s. Table splits follow the same
// pattern choice as their word-population counterparts.
func (d Data) corpora(s Splits) []corpus {
	var out []corpus
	if s.Train {
		out = append(out, corpus{model.SplitTrain, d.TrainWords, d.TrainPatterns})
	}
	if s.Validation {
		out = append(out, corpus{model.SplitValidation, d.AllWords, d.TrainPatterns})
	}
	if s.Test {
		out = append(out, corpus{model.SplitTest, d.AllWords, d.TestPatterns})
	}
	if s.Table {
		out = append(out, corpus{model.SplitTableValidation, d.TableWords, d.TrainPatterns})
		if s.Test {
			out = append(out, corpus{model.SplitTableTest, d.TableWords, d.TestPatterns})
		}
	}
	return out
}

// scoreFunc scores one split under a mapping.
type scoreFunc func(c corpus, m partition.Mapping) (model.FPRReport, error)

func direct(c corpus, m partition.Mapping) (model.FPRReport, error) {
	return Score(c.words, c.patterns, m)
}

// EvaluateCheckpoint scores cp on every enabled split. A checkpoint without a
// partition is returned as skipped.
func EvaluateCheckpoint(cp model.Checkpoint, timestamp float64, data Data, splits Splits) (model.Entry, error) {
	return evaluateCheckpoint(cp, timestamp, data, splits, direct)
}

func evaluateCheckpoint(cp model.Checkpoint, timestamp float64, data Data, splits Splits, score scoreFunc) (model.Entry, error) {
	entry := model.Entry{Index: cp.Index, Timestamp: timestamp, Objective: cp.Objective}
	if cp.Partition == nil {
		entry.Skipped = true
		entry.Reason = "no partition"
		return entry, nil
	}
	label := fmt.Sprintf("checkpoint %d", cp.Index)
	if cp.Index == model.BaselineIndex {
		label = "baseline"
	}
	m, err := cp.Partition.Mapping()
	if err != nil {
		return entry, fmt.Errorf("%s: %w", label, err)
	}
	entry.Reports = make(map[model.Split]model.FPRReport)
	for _, c := range data.corpora(splits) {
		report, err := score(c, m)
		if err != nil {
			return entry, fmt.Errorf("%s on %s: %w", label, c.split, errors.WithCorpus(err, string(c.split), label))
		}
		entry.Reports[c.split] = report
	}
	return entry, nil
}

// Options configure one trail evaluation.
type Options struct {
	Splits Splits
	// Budget drops checkpoints whose offset-adjusted time exceeds it; zero or
	// negative keeps all.
	Budget time.Duration
	// BaselineBins adds the modulo partition with this many bins as an entry
	// with index model.BaselineIndex; zero disables it.
	BaselineBins int
}

// Harness scores trails on a bounded pool of workers.
type Harness struct {
	workers int
	logger  *slog.Logger
}

// NewHarness creates a harness running at most workers scorings at once;
// zero or less uses one worker per CPU.
func NewHarness(workers int, logger *slog.Logger) *Harness {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{workers: workers, logger: logger.With("component", "evaluation")}
}

// EvaluateTrail scores the checkpoints of trail in parallel and returns one
// entry per checkpoint sorted by index, the baseline first. The first
// failure cancels the remaining work.
func (h *Harness) EvaluateTrail(ctx context.Context, trail model.Trail, data Data, opts Options) ([]model.Entry, error) {
	budget := -1.0
	if opts.Budget > 0 {
		budget = opts.Budget.Seconds()
	}
	checkpoints := trail.Within(budget)

	ctx, span := tracer.Start(ctx, "evaluation.EvaluateTrail", trace.WithAttributes(
		attribute.Int("trail.checkpoints", len(trail.Checkpoints)),
		attribute.Int("trail.within_budget", len(checkpoints)),
		attribute.Int("evaluation.workers", h.workers),
	))
	defer span.End()

	type job struct {
		cp        model.Checkpoint
		timestamp float64
	}
	jobs := make([]job, 0, len(checkpoints)+1)
	if opts.BaselineBins > 0 {
		m, err := partition.Default(opts.BaselineBins)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job{cp: model.Checkpoint{Index: model.BaselineIndex, Partition: partition.Revert(m)}})
	}
	for _, cp := range checkpoints {
		jobs = append(jobs, job{cp: cp, timestamp: trail.Timestamp(cp)})
	}

	memo := newMemo()
	entries := make([]model.Entry, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := evaluateCheckpoint(j.cp, j.timestamp, data, opts.Splits, memo.score)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Index < entries[b].Index })

	skipped := 0
	for _, e := range entries {
		if e.Skipped {
			skipped++
			metrics.CheckpointsSkipped.Inc()
			continue
		}
		for split := range e.Reports {
			metrics.CheckpointsEvaluated.WithLabelValues(string(split)).Inc()
		}
	}
	span.SetAttributes(attribute.Int("evaluation.skipped", skipped), attribute.Int("evaluation.cache_hits", memo.hits))
	h.logger.Info("Trail evaluated",
		"checkpoints", len(checkpoints),
		"dropped_by_budget", len(trail.Checkpoints)-len(checkpoints),
		"skipped", skipped,
		"cache_hits", memo.hits)
	return entries, nil
}

// memo shares reports between checkpoints whose partitions coincide. It
// lives for one trail evaluation, so the data behind a key never changes.
// Reports are keyed on the full mapping; the 64-bit hash only names the
// in-flight scoring, and a flight that turns out to hold another mapping
// is not trusted.
type memo struct {
	mu      sync.Mutex
	reports map[memoKey]model.FPRReport
	hits    int
	group   singleflight.Group
	hash    func(partition.Mapping) uint64
}

type memoKey struct {
	mapping partition.Mapping
	split   model.Split
}

type flight struct {
	mapping partition.Mapping
	report  model.FPRReport
}

func newMemo() *memo {
	return &memo{
		reports: make(map[memoKey]model.FPRReport),
		hash:    partition.Mapping.Key,
	}
}

func (c *memo) score(cp corpus, m partition.Mapping) (model.FPRReport, error) {
	key := memoKey{mapping: m, split: cp.split}
	c.mu.Lock()
	if report, ok := c.reports[key]; ok {
		c.hits++
		c.mu.Unlock()
		metrics.ScoreCacheHits.Inc()
		return report, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%016x/%s", c.hash(m), cp.split), func() (any, error) {
		report, err := Score(cp.words, cp.patterns, m)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.reports[key] = report
		c.mu.Unlock()
		return flight{mapping: m, report: report}, nil
	})
	if err != nil {
		return model.FPRReport{}, err
	}
	f, ok := v.(flight)
	if !ok {
		return model.FPRReport{}, fmt.Errorf("unexpected type from score group: got %T", v)
	}
	if f.mapping != m {
		// Hash collision with a concurrent scoring of another mapping.
		return Score(cp.words, cp.patterns, m)
	}
	return f.report, nil
}

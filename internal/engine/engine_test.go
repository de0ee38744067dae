package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/utndatasystems/string-fingerprints/config"
	apperrors "github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/persistence"
	testutil "github.com/utndatasystems/string-fingerprints/internal/testing"
	"github.com/utndatasystems/string-fingerprints/model"
)

func testConfig(t *testing.T) config.RunConfig {
	return testutil.TinyRunConfig(t, "tiny")
}

func waitForJob(t *testing.T, eng *Engine, jobID string) *model.Job {
	t.Helper()
	return testutil.WaitForJob(t, eng, jobID, testutil.DefaultJobPollingOptions())
}

func TestEngine_StartRun(t *testing.T) {
	dataDir := t.TempDir()
	eng := NewEngine(dataDir, nil)
	defer eng.Stop()

	runID, jobID, err := eng.StartRun(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	job := waitForJob(t, eng, jobID)
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("Expected job to complete, got %s: %s", job.Status, job.Error)
	}
	if job.Type != model.JobTypeOptimize || job.RunID != runID {
		t.Errorf("Unexpected job %+v", job)
	}

	run, err := eng.GetRun(runID)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Status != model.RunStatusEvaluated {
		t.Fatalf("Expected run to be evaluated, got %s (%s)", run.Status, run.Error)
	}
	if run.Solver == nil || run.Solver.Backend != "gini" || run.Solver.Status != "optimal" {
		t.Errorf("Unexpected solver summary %+v", run.Solver)
	}
	if run.Stats.Words != 4 || run.Stats.Patterns != 3 || run.Stats.Letters != 4 || run.Stats.Pairs == 0 {
		t.Errorf("Unexpected stats %+v", run.Stats)
	}

	best, ok := run.Best()
	if !ok || best.Partition == nil {
		t.Fatalf("Expected a best checkpoint with a partition")
	}
	if len(run.Entries) != len(run.Trail.Checkpoints)+1 {
		t.Fatalf("Expected one entry per checkpoint plus the baseline, got %d", len(run.Entries))
	}
	if run.Entries[0].Index != model.BaselineIndex {
		t.Errorf("Expected the baseline first, got index %d", run.Entries[0].Index)
	}
	last := run.Entries[len(run.Entries)-1]
	if got := float64(last.Reports[model.SplitTrain].FalsePositives); got != best.Objective {
		t.Errorf("Expected train false positives %v to equal the objective %v", got, best.Objective)
	}

	for _, name := range []string{runFile, trailFile, reportFile} {
		if _, err := os.Stat(filepath.Join(dataDir, runID, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}

	trail, err := eng.RunTrail(runID, -1)
	if err != nil {
		t.Fatalf("Failed to get trail: %v", err)
	}
	if len(trail.Checkpoints) != len(run.Trail.Checkpoints) {
		t.Errorf("Expected the full trail without a budget")
	}
	if trail, _ := eng.RunTrail(runID, 0); len(trail.Checkpoints) != 0 {
		t.Errorf("Expected no checkpoint within a zero budget")
	}
}

func TestEngine_ReloadsRuns(t *testing.T) {
	dataDir := t.TempDir()
	eng := NewEngine(dataDir, nil)

	cfg := testConfig(t)
	cfg.Evaluation = config.EvaluationConfig{}
	runID, jobID, err := eng.StartRun(cfg)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	waitForJob(t, eng, jobID)
	eng.Stop()

	interrupted := model.Run{ID: "interrupted", Status: model.RunStatusOptimizing, CreatedAt: time.Now()}
	if err := persistence.SaveGob(filepath.Join(dataDir, "interrupted", runFile), interrupted); err != nil {
		t.Fatalf("Failed to write run: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "empty"), 0750); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	reloaded := NewEngine(dataDir, nil)
	defer reloaded.Stop()

	run, err := reloaded.GetRun(runID)
	if err != nil {
		t.Fatalf("Expected run to be reloaded: %v", err)
	}
	if run.Status != model.RunStatusOptimized || run.Trail == nil {
		t.Errorf("Expected an optimized run with its trail, got %s", run.Status)
	}
	if run.Config.Solver.TimeLimit.Std() != 10*time.Second {
		t.Errorf("Expected the config to survive, got time limit %v", run.Config.Solver.TimeLimit.Std())
	}

	run, err = reloaded.GetRun("interrupted")
	if err != nil {
		t.Fatalf("Expected interrupted run to be reloaded: %v", err)
	}
	if run.Status != model.RunStatusFailed {
		t.Errorf("Expected interrupted run to be failed, got %s", run.Status)
	}
	if got := len(reloaded.ListRuns()); got != 2 {
		t.Errorf("Expected 2 runs, got %d", got)
	}
}

func TestEngine_EvaluateRun(t *testing.T) {
	eng := NewEngine("", nil)
	defer eng.Stop()

	cfg := testConfig(t)
	cfg.Evaluation = config.EvaluationConfig{}
	runID, jobID, err := eng.StartRun(cfg)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	waitForJob(t, eng, jobID)

	run, _ := eng.GetRun(runID)
	if run.Status != model.RunStatusOptimized || run.Entries != nil {
		t.Fatalf("Expected an optimized run without entries, got %s", run.Status)
	}

	if _, err := eng.EvaluateRun(runID, config.EvaluationConfig{Table: true}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected a validation error without table words, got %v", err)
	}

	jobID, err = eng.EvaluateRun(runID, config.EvaluationConfig{Train: true, Validation: true, Workers: 2})
	if err != nil {
		t.Fatalf("Failed to start evaluation: %v", err)
	}
	job := waitForJob(t, eng, jobID)
	testutil.AssertJobCompleted(t, job, model.JobTypeEvaluate, runID)

	run, _ = eng.GetRun(runID)
	if run.Status != model.RunStatusEvaluated || len(run.Entries) != len(run.Trail.Checkpoints) {
		t.Fatalf("Expected one entry per checkpoint, got %d for %d", len(run.Entries), len(run.Trail.Checkpoints))
	}
	for _, entry := range run.Entries {
		if _, ok := entry.Reports[model.SplitValidation]; !ok {
			t.Errorf("Expected a validation report for checkpoint %d", entry.Index)
		}
	}

	if jobs := eng.ListJobs(runID, nil); len(jobs) != 2 {
		t.Errorf("Expected 2 jobs for the run, got %d", len(jobs))
	}
}

func TestEngine_RandomBackend(t *testing.T) {
	eng := NewEngine("", nil)
	defer eng.Stop()

	cfg := testConfig(t)
	cfg.Solver.Backend = BackendRandom
	cfg.Solver.Iterations = 50
	runID, jobID, err := eng.StartRun(cfg)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	job := waitForJob(t, eng, jobID)
	testutil.AssertJobCompleted(t, job, model.JobTypeRandomSearch, runID)

	run, _ := eng.GetRun(runID)
	if run.Solver.Backend != BackendRandom || len(run.Trail.Checkpoints) == 0 {
		t.Errorf("Expected a random-search trail, got %+v", run.Solver)
	}
	if !run.Trail.Gap.Inf() {
		t.Errorf("Expected an unbounded gap for random search, got %v", run.Trail.Gap)
	}
}

func TestEngine_Errors(t *testing.T) {
	eng := NewEngine("", nil)
	defer eng.Stop()

	if _, _, err := eng.StartRun(config.Default()); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected a validation error for a config without corpora, got %v", err)
	}
	if _, err := eng.GetRun("missing"); !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if _, err := eng.EvaluateRun("missing", config.EvaluationConfig{Train: true}); !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}

	cfg := testConfig(t)
	cfg.Corpus.WordsFile = filepath.Join(t.TempDir(), "missing.txt")
	runID, jobID, err := eng.StartRun(cfg)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	job := waitForJob(t, eng, jobID)
	if job.Status != model.JobStatusFailed {
		t.Errorf("Expected the job to fail, got %s", job.Status)
	}
	run, _ := eng.GetRun(runID)
	if run.Status != model.RunStatusFailed || !strings.Contains(run.Error, "missing.txt") {
		t.Errorf("Expected a failed run naming the missing file, got %s: %s", run.Status, run.Error)
	}
	if _, err := eng.RunTrail(runID, -1); !errors.Is(err, apperrors.ErrRunBusy) {
		t.Errorf("Expected ErrRunBusy for a run without trail, got %v", err)
	}
	if _, err := eng.EvaluateRun(runID, config.EvaluationConfig{Train: true}); !errors.Is(err, apperrors.ErrRunBusy) {
		t.Errorf("Expected ErrRunBusy for a run without trail, got %v", err)
	}
}

func TestEngine_GophersatNeedsUnlimitedTime(t *testing.T) {
	eng := NewEngine("", nil)
	defer eng.Stop()

	cfg := testConfig(t)
	cfg.Solver.Backend = "gophersat"
	_, _, err := eng.StartRun(cfg)
	var validation *apperrors.ValidationError
	if !errors.As(err, &validation) || validation.Field != "solver.backend" {
		t.Fatalf("Expected a solver.backend validation error for a time-limited gophersat run, got %v", err)
	}
	if got := len(eng.ListRuns()); got != 0 {
		t.Errorf("Expected no run to be registered, got %d", got)
	}

	cfg.Solver.TimeLimit = config.Duration(-1)
	runID, jobID, err := eng.StartRun(cfg)
	if err != nil {
		t.Fatalf("Failed to start an unlimited gophersat run: %v", err)
	}
	testutil.AssertJobCompleted(t, waitForJob(t, eng, jobID), model.JobTypeOptimize, runID)
	run, _ := eng.GetRun(runID)
	if run.Solver.Backend != "gophersat" || run.Solver.Status != "optimal" {
		t.Errorf("Expected an optimal gophersat solve, got %+v", run.Solver)
	}
}

// Package engine orchestrates optimisation runs: it loads and samples the
// corpora, solves the partition model, evaluates the resulting trail and
// keeps every run on disk so a restarted service still serves it.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/ilp/pbsat"
	"github.com/utndatasystems/string-fingerprints/internal/jobs"
	"github.com/utndatasystems/string-fingerprints/model"
)

// DefaultJobWorkers bounds the runs optimised or evaluated at the same time.
const DefaultJobWorkers = 2

// Engine manages optimisation runs and the jobs working on them.
type Engine struct {
	mu         sync.RWMutex
	runs       map[string]*model.Run
	dataDir    string
	jobManager *jobs.Manager
	logger     *slog.Logger
}

// NewEngine creates an engine persisting under dataDir and loads the runs
// already stored there. An empty dataDir keeps runs in memory only.
func NewEngine(dataDir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	eng := &Engine{
		runs:       make(map[string]*model.Run),
		dataDir:    dataDir,
		jobManager: jobs.NewManager(DefaultJobWorkers, logger),
		logger:     logger.With("component", "engine"),
	}
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, dataDirPerm); err != nil {
			eng.logger.Warn("Could not create data directory, runs will not be persisted", "dir", dataDir, "error", err)
		}
		eng.loadRunsFromDisk()
	}
	eng.jobManager.Start()
	return eng
}

// Stop cancels running jobs and waits for them.
func (e *Engine) Stop() {
	e.jobManager.Stop()
}

// CreateRun validates cfg and registers a new run without starting it.
func (e *Engine) CreateRun(cfg config.RunConfig) (*model.Run, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errors.NewValidationError("config", strings.Join(problems, "; "))
	}
	if cfg.Solver.Backend == pbsat.Name && cfg.Solver.TimeLimit > 0 {
		return nil, errors.NewValidationError("solver.backend",
			"gophersat cannot be stopped at solver.time_limit; use gini or an unlimited time_limit (\"-1s\")")
	}

	now := time.Now()
	run := &model.Run{
		ID:        uuid.New().String(),
		Name:      cfg.Name,
		Config:    cfg,
		Status:    model.RunStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[run.ID] = run
	if err := e.persistRunUnsafe(run); err != nil {
		delete(e.runs, run.ID)
		return nil, err
	}
	e.logger.Info("Run created", "run_id", run.ID, "name", run.Name, "backend", cfg.Solver.Backend, "bins", cfg.Model.NumBins)
	return copyRun(run), nil
}

func copyRun(r *model.Run) *model.Run {
	c := *r
	if r.Solver != nil {
		s := *r.Solver
		c.Solver = &s
	}
	return &c
}

// GetRun returns a copy of a run.
func (e *Engine) GetRun(runID string) (*model.Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	run, ok := e.runs[runID]
	if !ok {
		return nil, errors.NewRunNotFoundError(runID)
	}
	return copyRun(run), nil
}

// ListRuns returns every run, oldest first, without trails and entries.
func (e *Engine) ListRuns() []*model.Run {
	e.mu.RLock()
	defer e.mu.RUnlock()

	runs := make([]*model.Run, 0, len(e.runs))
	for _, run := range e.runs {
		c := copyRun(run)
		c.Trail = nil
		c.Entries = nil
		runs = append(runs, c)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs
}

// RunTrail returns the trail of a run restricted to the checkpoints found
// within budget seconds. A negative budget keeps every checkpoint.
func (e *Engine) RunTrail(runID string, budget float64) (model.Trail, error) {
	run, err := e.GetRun(runID)
	if err != nil {
		return model.Trail{}, err
	}
	if run.Trail == nil {
		return model.Trail{}, fmt.Errorf("%w: run '%s' has no trail yet (status: %s)", errors.ErrRunBusy, runID, run.Status)
	}
	trail := *run.Trail
	trail.Checkpoints = run.Trail.Within(budget)
	return trail, nil
}

// updateRun applies fn to a run under the engine lock and persists it.
func (e *Engine) updateRun(runID string, fn func(run *model.Run)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[runID]
	if !ok {
		return errors.NewRunNotFoundError(runID)
	}
	fn(run)
	run.UpdatedAt = time.Now()
	return e.persistRunUnsafe(run)
}

// GetJob returns a job by ID.
func (e *Engine) GetJob(jobID string) (*model.Job, error) {
	return e.jobManager.GetJob(jobID)
}

// ListJobs lists the jobs of a run, or of every run when runID is empty.
func (e *Engine) ListJobs(runID string, status *model.JobStatus) []*model.Job {
	return e.jobManager.ListJobs(runID, status)
}

// CancelJob asks a job to stop.
func (e *Engine) CancelJob(jobID string) error {
	return e.jobManager.CancelJob(jobID)
}

// GetJobMetrics returns the job manager's counters.
func (e *Engine) GetJobMetrics() jobs.JobMetricsData {
	return e.jobManager.GetMetrics()
}

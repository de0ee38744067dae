package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/model"
)

// optimizeSteps are the progress stages reported by an optimisation job.
const optimizeSteps = 4

// StartRun creates a run for cfg and optimises it in the background. When
// cfg selects any evaluation split the trail is evaluated by the same job.
func (e *Engine) StartRun(cfg config.RunConfig) (runID, jobID string, err error) {
	run, err := e.CreateRun(cfg)
	if err != nil {
		return "", "", err
	}

	jobType := model.JobTypeOptimize
	if cfg.Solver.Backend == BackendRandom {
		jobType = model.JobTypeRandomSearch
	}
	jobID = e.jobManager.CreateJob(jobType, run.ID, map[string]string{
		"operation": "optimize",
		"backend":   cfg.Solver.Backend,
		"bins":      strconv.Itoa(cfg.Model.NumBins),
	})

	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		return e.executeOptimizeJob(ctx, run.ID, jobID)
	})
	if err != nil {
		e.markFailed(run.ID, err)
		return run.ID, "", fmt.Errorf("failed to start optimize job: %w", err)
	}
	return run.ID, jobID, nil
}

// executeOptimizeJob loads, solves and (optionally) evaluates a run.
func (e *Engine) executeOptimizeJob(ctx context.Context, runID, jobID string) (err error) {
	run, err := e.GetRun(runID)
	if err != nil {
		return err
	}
	cfg := run.Config
	defer func() {
		if err != nil {
			e.markFailed(runID, err)
		}
	}()

	if err := e.updateRun(runID, func(r *model.Run) { r.Status = model.RunStatusOptimizing }); err != nil {
		return err
	}

	e.jobManager.UpdateJobProgress(jobID, 0, optimizeSteps, "Loading corpora")
	prep, err := Prepare(cfg)
	if err != nil {
		return fmt.Errorf("failed to prepare run '%s': %w", runID, err)
	}

	e.jobManager.UpdateJobProgress(jobID, 1, optimizeSteps, "Solving")
	opt, err := Optimize(ctx, prep, cfg, e.logger)
	if err != nil {
		return fmt.Errorf("failed to optimize run '%s': %w", runID, err)
	}

	e.jobManager.UpdateJobProgress(jobID, 2, optimizeSteps, "Saving trail")
	err = e.updateRun(runID, func(r *model.Run) {
		r.Status = model.RunStatusOptimized
		r.Stats = opt.stats(prep)
		solver := opt.Solver
		r.Solver = &solver
		trail := opt.Trail
		r.Trail = &trail
		r.Entries = nil
		r.Error = ""
	})
	if err != nil {
		return err
	}
	e.logger.Info("Run optimized", "run_id", runID, "status", opt.Solver.Status,
		"objective", opt.Solver.Objective, "checkpoints", len(opt.Trail.Checkpoints))

	if !cfg.Evaluation.Any() {
		e.jobManager.UpdateJobProgress(jobID, optimizeSteps, optimizeSteps, "Optimized")
		return nil
	}
	e.jobManager.UpdateJobProgress(jobID, 3, optimizeSteps, "Evaluating trail")
	if err := e.evaluate(ctx, runID, prep, opt.Trail, cfg.Evaluation, cfg.Model.NumBins); err != nil {
		return err
	}
	e.jobManager.UpdateJobProgress(jobID, optimizeSteps, optimizeSteps, "Evaluated")
	return nil
}

// EvaluateRun scores the trail of an optimised run in the background with
// the given evaluation settings. The corpora are reloaded from the run's
// configuration; the seeded sampling draws the same training subsets.
func (e *Engine) EvaluateRun(runID string, ec config.EvaluationConfig) (string, error) {
	if ec.Table {
		run, err := e.GetRun(runID)
		if err != nil {
			return "", err
		}
		if run.Config.Corpus.TableWordsFile == "" {
			return "", errors.NewValidationError("table", "run has no table words file")
		}
	}
	if ec.Workers < 0 || ec.Budget < 0 {
		return "", errors.NewValidationError("evaluation", "workers and budget cannot be negative")
	}

	e.mu.Lock()
	run, ok := e.runs[runID]
	if !ok {
		e.mu.Unlock()
		return "", errors.NewRunNotFoundError(runID)
	}
	if run.Trail == nil || run.Status == model.RunStatusOptimizing || run.Status == model.RunStatusEvaluating {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: run '%s' cannot be evaluated (status: %s)", errors.ErrRunBusy, runID, run.Status)
	}
	run.Status = model.RunStatusEvaluating
	cfg := run.Config
	trail := *run.Trail
	e.mu.Unlock()

	jobID := e.jobManager.CreateJob(model.JobTypeEvaluate, runID, map[string]string{
		"operation": "evaluate",
		"budget":    ec.Budget.Std().String(),
	})
	err := e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		return e.executeEvaluateJob(ctx, runID, jobID, cfg, trail, ec)
	})
	if err != nil {
		e.markFailed(runID, err)
		return "", fmt.Errorf("failed to start evaluate job: %w", err)
	}
	return jobID, nil
}

// executeEvaluateJob reloads the corpora of a run and evaluates its trail.
func (e *Engine) executeEvaluateJob(ctx context.Context, runID, jobID string, cfg config.RunConfig, trail model.Trail, ec config.EvaluationConfig) (err error) {
	defer func() {
		if err != nil {
			e.markFailed(runID, err)
		}
	}()

	e.jobManager.UpdateJobProgress(jobID, 0, 2, "Loading corpora")
	prep, err := Prepare(cfg)
	if err != nil {
		return fmt.Errorf("failed to prepare run '%s': %w", runID, err)
	}
	e.jobManager.UpdateJobProgress(jobID, 1, 2, "Evaluating trail")
	if err := e.evaluate(ctx, runID, prep, trail, ec, cfg.Model.NumBins); err != nil {
		return err
	}
	e.jobManager.UpdateJobProgress(jobID, 2, 2, "Evaluated")
	return nil
}

func (e *Engine) evaluate(ctx context.Context, runID string, prep *Prepared, trail model.Trail, ec config.EvaluationConfig, numBins int) error {
	if err := e.updateRun(runID, func(r *model.Run) { r.Status = model.RunStatusEvaluating }); err != nil {
		return err
	}
	entries, err := Evaluate(ctx, prep, trail, ec, numBins, e.logger)
	if err != nil {
		return fmt.Errorf("failed to evaluate run '%s': %w", runID, err)
	}
	return e.updateRun(runID, func(r *model.Run) {
		r.Status = model.RunStatusEvaluated
		r.Entries = entries
		r.Error = ""
	})
}

func (e *Engine) markFailed(runID string, cause error) {
	err := e.updateRun(runID, func(r *model.Run) {
		r.Status = model.RunStatusFailed
		r.Error = cause.Error()
	})
	if err != nil {
		e.logger.Error("Failed to record run failure", "run_id", runID, "error", err)
	}
}

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/utndatasystems/string-fingerprints/internal/persistence"
	"github.com/utndatasystems/string-fingerprints/model"
)

const (
	dataDirPerm = 0750
	runFile     = "run.gob"
	trailFile   = "trail.json"
	reportFile  = "report.json"
)

// loadRunsFromDisk registers every run stored under the data directory.
// Runs that were in flight when the process stopped are marked failed.
func (e *Engine) loadRunsFromDisk() {
	e.logger.Info("Loading runs from disk", "dir", e.dataDir)

	items, err := os.ReadDir(e.dataDir)
	if err != nil {
		e.logger.Warn("Failed to read data directory, no runs loaded", "dir", e.dataDir, "error", err)
		return
	}

	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		runID := item.Name()
		runPath := filepath.Join(e.dataDir, runID, runFile)

		var run model.Run
		if err := persistence.LoadGob(runPath, &run); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				e.logger.Warn("Failed to load run, skipping", "path", runPath, "error", err)
			}
			continue
		}
		if run.ID != runID {
			e.logger.Warn("Run ID does not match its directory, skipping", "run_id", run.ID, "dir", runID)
			continue
		}

		switch run.Status {
		case model.RunStatusCreated, model.RunStatusOptimizing, model.RunStatusEvaluating:
			run.Status = model.RunStatusFailed
			run.Error = "interrupted by a restart"
			if err := e.persistRunUnsafe(&run); err != nil {
				e.logger.Warn("Failed to persist interrupted run", "run_id", runID, "error", err)
			}
		}

		e.runs[runID] = &run
		e.logger.Info("Loaded run", "run_id", runID, "status", run.Status)
	}
}

// persistRunUnsafe writes the run record and its JSON exports. The caller
// holds e.mu.
func (e *Engine) persistRunUnsafe(run *model.Run) error {
	if e.dataDir == "" {
		return nil
	}
	runPath := filepath.Join(e.dataDir, run.ID)
	if err := persistence.SaveGob(filepath.Join(runPath, runFile), run); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	if run.Trail != nil {
		if err := persistence.SaveJSON(filepath.Join(runPath, trailFile), run.Trail); err != nil {
			return fmt.Errorf("failed to save trail of run %s: %w", run.ID, err)
		}
	}
	if run.Entries != nil {
		if err := persistence.SaveJSON(filepath.Join(runPath, reportFile), run.Entries); err != nil {
			return fmt.Errorf("failed to save report of run %s: %w", run.ID, err)
		}
	}
	return nil
}

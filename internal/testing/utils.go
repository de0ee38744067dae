// Package testing provides fixtures and helpers shared by the tests of the
// engine, the HTTP API and the CLI.
package testing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/model"
)

// The tiny corpus: under the two-bin modulo partition it has 7 false
// positives and 2 true negatives out of 9 negative pairs. Separating the
// four letters leaves a single false positive ("ad" against "da").
var (
	TinyWords    = []string{"abc", "bd", "cd", "da"}
	TinyPatterns = []string{"ad", "b", "cd"}
)

// WriteLines writes a newline-delimited file into dir and returns its path.
func WriteLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600)
	require.NoError(t, err, "Failed to write %s", name)
	return path
}

// WriteTinyCorpus writes the tiny words and patterns into dir.
func WriteTinyCorpus(t *testing.T, dir string) (wordsFile, patternsFile string) {
	t.Helper()
	return WriteLines(t, dir, "words.txt", TinyWords...), WriteLines(t, dir, "patterns.txt", TinyPatterns...)
}

// TinyRunConfig is a two-bin run over the tiny corpus that solves to
// optimality well within its time limit.
func TinyRunConfig(t *testing.T, name string) config.RunConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Name = name
	cfg.Corpus.WordsFile, cfg.Corpus.PatternsFile = WriteTinyCorpus(t, t.TempDir())
	cfg.Sampling.WordBlockSize = 0
	cfg.Sampling.PatternBlockSize = 0
	cfg.Model.NumBins = 2
	cfg.Model.Alphabet = "observed"
	cfg.Solver.TimeLimit = config.Duration(10 * time.Second)
	return cfg
}

// JobGetter looks up jobs by ID.
type JobGetter interface {
	GetJob(jobID string) (*model.Job, error)
}

// JobPollingOptions configures job polling behavior
type JobPollingOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	LogProgress  bool
}

// DefaultJobPollingOptions returns sensible defaults for job polling
func DefaultJobPollingOptions() JobPollingOptions {
	return JobPollingOptions{
		Timeout:      20 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

// WaitForJob polls a job until it is completed, failed or cancelled.
func WaitForJob(t *testing.T, jobs JobGetter, jobID string, opts JobPollingOptions) *model.Job {
	t.Helper()
	timeout := time.After(opts.Timeout)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatalf("Job %s did not finish within %v", jobID, opts.Timeout)
		case <-ticker.C:
			job, err := jobs.GetJob(jobID)
			require.NoError(t, err, "Failed to get job status")
			if job.Finished() {
				return job
			}
			if opts.LogProgress && job.Progress != nil {
				t.Logf("Job %s progress: %d/%d - %s",
					jobID, job.Progress.Current, job.Progress.Total, job.Progress.Message)
			}
		}
	}
}

// AssertJobCompleted verifies that a job of a run completed successfully.
// It stops the test when the job did not complete.
func AssertJobCompleted(t *testing.T, job *model.Job, expectedType model.JobType, expectedRun string) {
	t.Helper()
	require.Equal(t, model.JobStatusCompleted, job.Status, "Job should be completed: %s", job.Error)
	assert.Equal(t, expectedType, job.Type, "Job type should match")
	assert.Equal(t, expectedRun, job.RunID, "Job run ID should match")
	assert.NotNil(t, job.CompletedAt, "Job should have completion timestamp")
	assert.Empty(t, job.Error, "Job should not have error")
}

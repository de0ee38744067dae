package services

import (
	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/fingerprint"
	"github.com/utndatasystems/string-fingerprints/internal/jobs"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

// PartitionSpec selects the partition a request is evaluated under: an
// explicit grouping, or the default modulo partition into NumBins bins when
// Partition is empty.
type PartitionSpec struct {
	Partition partition.Partition `json:"partition,omitempty"`
	NumBins   int                 `json:"number_of_bins,omitempty"`
}

// Mapping resolves the selection to a byte-to-bin mapping.
func (s PartitionSpec) Mapping() (partition.Mapping, error) {
	if len(s.Partition) > 0 {
		return s.Partition.Mapping()
	}
	return partition.Default(s.NumBins)
}

// FingerprintRequest asks for the fingerprints of Texts.
type FingerprintRequest struct {
	PartitionSpec
	Texts []string `json:"texts"`
}

// FingerprintResult is the fingerprint of one text.
type FingerprintResult struct {
	Text        string                  `json:"text"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Bits        string                  `json:"bits"`
	Density     int                     `json:"density"`
}

// FingerprintResponse holds one result per requested text, in request order.
type FingerprintResponse struct {
	NumBins      int                 `json:"number_of_bins"`
	Fingerprints []FingerprintResult `json:"fingerprints"`
	Density      fingerprint.Summary `json:"density"`
}

// ScoreRequest asks for the false-positive rate of a partition on a corpus.
type ScoreRequest struct {
	PartitionSpec
	Words    []string `json:"words"`
	Patterns []string `json:"patterns"`
}

// RunManager starts, evaluates and serves optimisation runs.
type RunManager interface {
	StartRun(cfg config.RunConfig) (runID, jobID string, err error)
	EvaluateRun(runID string, ec config.EvaluationConfig) (string, error)
	GetRun(runID string) (*model.Run, error)
	ListRuns() []*model.Run
	RunTrail(runID string, budget float64) (model.Trail, error)
}

// JobManager exposes the background jobs working on runs.
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(runID string, status *model.JobStatus) []*model.Job
	CancelJob(jobID string) error
	GetJobMetrics() jobs.JobMetricsData
}

// Engine is everything the HTTP API needs.
type Engine interface {
	RunManager
	JobManager
}

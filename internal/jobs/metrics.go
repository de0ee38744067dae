package jobs

import (
	"sync"
	"time"

	"github.com/utndatasystems/string-fingerprints/internal/metrics"
	"github.com/utndatasystems/string-fingerprints/model"
)

// JobMetricsData is a point-in-time copy of JobMetrics served by the API
type JobMetricsData struct {
	JobsCreated          int64                           `json:"jobs_created"`
	JobsCompleted        int64                           `json:"jobs_completed"`
	JobsFailed           int64                           `json:"jobs_failed"`
	JobsCancelled        int64                           `json:"jobs_cancelled"`
	TotalExecutionTime   time.Duration                   `json:"total_execution_time_ns"`
	AverageExecutionTime time.Duration                   `json:"average_execution_time_ns"`
	AverageByType        map[model.JobType]time.Duration `json:"average_execution_time_by_type_ns"`
	JobsByType           map[model.JobType]int64         `json:"jobs_by_type"`
	JobsByStatus         map[model.JobStatus]int64       `json:"jobs_by_status"`
	SuccessRate          float64                         `json:"success_rate"`
	LastUpdated          time.Time                       `json:"last_updated"`
}

// recentTimes bounds the execution times kept per job type
const recentTimes = 100

// JobMetrics tracks job counts and execution times. Terminal outcomes are
// also exported to prometheus.
type JobMetrics struct {
	mu                   sync.RWMutex
	jobsCreated          int64
	jobsCompleted        int64
	jobsFailed           int64
	jobsCancelled        int64
	totalExecutionTime   time.Duration
	jobsByType           map[model.JobType]int64
	jobsByStatus         map[model.JobStatus]int64
	executionTimesByType map[model.JobType][]time.Duration
	lastUpdated          time.Time
}

// NewJobMetrics creates a new metrics collector
func NewJobMetrics() *JobMetrics {
	return &JobMetrics{
		jobsByType:           make(map[model.JobType]int64),
		jobsByStatus:         make(map[model.JobStatus]int64),
		executionTimesByType: make(map[model.JobType][]time.Duration),
		lastUpdated:          time.Now(),
	}
}

// RecordJobCreated increments job creation counter
func (m *JobMetrics) RecordJobCreated(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCreated++
	m.jobsByType[jobType]++
	m.jobsByStatus[model.JobStatusPending]++
	m.lastUpdated = time.Now()
}

// RecordJobStatusChange moves one job between status counters
func (m *JobMetrics) RecordJobStatusChange(oldStatus, newStatus model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldStatus != "" && m.jobsByStatus[oldStatus] > 0 {
		m.jobsByStatus[oldStatus]--
	}
	m.jobsByStatus[newStatus]++
	m.lastUpdated = time.Now()
}

// RecordJobStarted marks a job as holding a worker slot
func (m *JobMetrics) RecordJobStarted() {
	metrics.JobsRunning.Inc()
}

// RecordJobCompleted records successful job completion
func (m *JobMetrics) RecordJobCompleted(jobType model.JobType, executionTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCompleted++
	m.totalExecutionTime += executionTime
	times := append(m.executionTimesByType[jobType], executionTime)
	if len(times) > recentTimes {
		times = times[len(times)-recentTimes:]
	}
	m.executionTimesByType[jobType] = times
	m.lastUpdated = time.Now()

	metrics.JobsRunning.Dec()
	metrics.JobsTotal.WithLabelValues(string(jobType), "completed").Inc()
}

// RecordJobFailed records job failure
func (m *JobMetrics) RecordJobFailed(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsFailed++
	m.lastUpdated = time.Now()

	metrics.JobsRunning.Dec()
	metrics.JobsTotal.WithLabelValues(string(jobType), "failed").Inc()
}

// RecordJobCancelled records a job stopped by CancelJob or shutdown
func (m *JobMetrics) RecordJobCancelled(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCancelled++
	m.lastUpdated = time.Now()

	metrics.JobsRunning.Dec()
	metrics.JobsTotal.WithLabelValues(string(jobType), "cancelled").Inc()
}

// GetMetrics returns a copy of current metrics
func (m *JobMetrics) GetMetrics() JobMetricsData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := JobMetricsData{
		JobsCreated:        m.jobsCreated,
		JobsCompleted:      m.jobsCompleted,
		JobsFailed:         m.jobsFailed,
		JobsCancelled:      m.jobsCancelled,
		TotalExecutionTime: m.totalExecutionTime,
		AverageByType:      make(map[model.JobType]time.Duration),
		JobsByType:         make(map[model.JobType]int64),
		JobsByStatus:       make(map[model.JobStatus]int64),
		SuccessRate:        m.successRate(),
		LastUpdated:        m.lastUpdated,
	}
	if m.jobsCompleted > 0 {
		data.AverageExecutionTime = m.totalExecutionTime / time.Duration(m.jobsCompleted)
	}
	for k, v := range m.jobsByType {
		data.JobsByType[k] = v
	}
	for k, v := range m.jobsByStatus {
		data.JobsByStatus[k] = v
	}
	for k, times := range m.executionTimesByType {
		data.AverageByType[k] = average(times)
	}
	return data
}

func average(times []time.Duration) time.Duration {
	if len(times) == 0 {
		return 0
	}
	var total time.Duration
	for _, t := range times {
		total += t
	}
	return total / time.Duration(len(times))
}

// GetAverageExecutionTimeByType returns the mean of the recent execution times of a job type
func (m *JobMetrics) GetAverageExecutionTimeByType(jobType model.JobType) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return average(m.executionTimesByType[jobType])
}

// GetSuccessRate returns the share of finished jobs that completed (0.0 to 1.0)
func (m *JobMetrics) GetSuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successRate()
}

func (m *JobMetrics) successRate() float64 {
	finished := m.jobsCompleted + m.jobsFailed
	if finished == 0 {
		return 1.0
	}
	return float64(m.jobsCompleted) / float64(finished)
}

// GetCurrentWorkload returns the number of pending and running jobs
func (m *JobMetrics) GetCurrentWorkload() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.jobsByStatus[model.JobStatusPending] + m.jobsByStatus[model.JobStatusRunning] + m.jobsByStatus[model.JobStatusCancelling]
}

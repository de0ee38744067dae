package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common error conditions
var (
	// ErrUnmappedByte is returned when a partition has no bin for a byte of the input
	ErrUnmappedByte = errors.New("unmapped byte")

	// ErrInvalidPartition is returned when a partition is not a function from bytes to bins
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrSubsetViolation is returned when a training set is not a sub-multiset of its population
	ErrSubsetViolation = errors.New("not a sub-multiset")

	// ErrSolverInfeasible is returned when the solver proved that no assignment exists
	ErrSolverInfeasible = errors.New("solver: model is infeasible")

	// ErrSolverFailed is returned when the solver produced no usable solution
	ErrSolverFailed = errors.New("solver failed")

	// ErrUnsupportedModel is returned when a backend cannot express a model
	ErrUnsupportedModel = errors.New("model not supported by backend")

	// ErrRunNotFound is returned when a run is not found
	ErrRunNotFound = errors.New("run not found")

	// ErrRunBusy is returned when a run already has an optimisation or evaluation in flight
	ErrRunBusy = errors.New("run is busy")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// UnmappedByteError reports a byte of Text that the active partition does not cover.
// Corpus and Partition are filled in by callers that know them.
type UnmappedByteError struct {
	Byte      byte
	Offset    int
	Text      string
	Corpus    string
	Partition string
}

func (e *UnmappedByteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "byte 0x%02x at offset %d of %q has no bin", e.Byte, e.Offset, e.Text)
	if e.Corpus != "" {
		fmt.Fprintf(&b, " (corpus '%s')", e.Corpus)
	}
	if e.Partition != "" {
		fmt.Fprintf(&b, " (partition '%s')", e.Partition)
	}
	return b.String()
}

func (e *UnmappedByteError) Is(target error) bool {
	return target == ErrUnmappedByte
}

// NewUnmappedByteError creates a new UnmappedByteError
func NewUnmappedByteError(b byte, offset int, text string) *UnmappedByteError {
	return &UnmappedByteError{Byte: b, Offset: offset, Text: text}
}

// InvalidPartitionError reports a letter assigned to zero or several bins
type InvalidPartitionError struct {
	Letter    byte
	Bins      []int
	Partition string
	Reason    string
}

func (e *InvalidPartitionError) Error() string {
	msg := fmt.Sprintf("letter 0x%02x (%q) is assigned to %d bins %v", e.Letter, rune(e.Letter), len(e.Bins), e.Bins)
	if e.Reason != "" {
		msg = e.Reason
	}
	if e.Partition != "" {
		return fmt.Sprintf("invalid partition '%s': %s", e.Partition, msg)
	}
	return "invalid partition: " + msg
}

func (e *InvalidPartitionError) Is(target error) bool {
	return target == ErrInvalidPartition
}

// NewInvalidPartitionError creates a new InvalidPartitionError for a letter and the bins it landed in
func NewInvalidPartitionError(letter byte, bins []int) *InvalidPartitionError {
	return &InvalidPartitionError{Letter: letter, Bins: bins}
}

// SubsetViolationError reports a training item that occurs more often than in the population
type SubsetViolationError struct {
	Pattern   string
	Needed    int
	Available int
}

func (e *SubsetViolationError) Error() string {
	return fmt.Sprintf("not a multi-set: %q is needed %d times but the population holds %d", e.Pattern, e.Needed, e.Available)
}

func (e *SubsetViolationError) Is(target error) bool {
	return target == ErrSubsetViolation
}

// NewSubsetViolationError creates a new SubsetViolationError
func NewSubsetViolationError(pattern string, needed, available int) *SubsetViolationError {
	return &SubsetViolationError{Pattern: pattern, Needed: needed, Available: available}
}

// SolverError carries the terminal status of a solve that yielded no partition
type SolverError struct {
	Backend string
	Status  string
	Err     error
}

func (e *SolverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solver '%s' ended with status %s: %v", e.Backend, e.Status, e.Err)
	}
	return fmt.Sprintf("solver '%s' ended with status %s", e.Backend, e.Status)
}

func (e *SolverError) Is(target error) bool {
	if target == ErrSolverFailed {
		return true
	}
	return target == ErrSolverInfeasible && e.Status == "infeasible"
}

func (e *SolverError) Unwrap() error {
	return e.Err
}

// NewSolverError creates a new SolverError
func NewSolverError(backend, status string, err error) *SolverError {
	return &SolverError{Backend: backend, Status: status, Err: err}
}

// UnsupportedModelError reports a model construct a backend cannot encode
type UnsupportedModelError struct {
	Backend string
	Reason  string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("backend '%s' cannot encode model: %s", e.Backend, e.Reason)
}

func (e *UnsupportedModelError) Is(target error) bool {
	return target == ErrUnsupportedModel
}

// NewUnsupportedModelError creates a new UnsupportedModelError
func NewUnsupportedModelError(backend, reason string) *UnsupportedModelError {
	return &UnsupportedModelError{Backend: backend, Reason: reason}
}

// RunNotFoundError represents a run not found error with context
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run with ID '%s' not found", e.RunID)
}

func (e *RunNotFoundError) Is(target error) bool {
	return target == ErrRunNotFound
}

// NewRunNotFoundError creates a new RunNotFoundError
func NewRunNotFoundError(runID string) *RunNotFoundError {
	return &RunNotFoundError{RunID: runID}
}

// JobNotFoundError represents a job not found error with context
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job with ID '%s' not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// NewJobNotFoundError creates a new JobNotFoundError
func NewJobNotFoundError(jobID string) *JobNotFoundError {
	return &JobNotFoundError{JobID: jobID}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// WithCorpus fills in the corpus and partition names of an UnmappedByteError
// found in err's chain. Other errors are returned unchanged.
func WithCorpus(err error, corpus, partition string) error {
	var unmapped *UnmappedByteError
	if errors.As(err, &unmapped) {
		unmapped.Corpus = corpus
		unmapped.Partition = partition
	}
	return err
}

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestUnmappedByteError(t *testing.T) {
	err := NewUnmappedByteError('z', 2, "xyz")

	expectedMsg := `byte 0x7a at offset 2 of "xyz" has no bin`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	err.Corpus = "train-words"
	err.Partition = "checkpoint-3"
	expectedMsg = `byte 0x7a at offset 2 of "xyz" has no bin (corpus 'train-words') (partition 'checkpoint-3')`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	if !errors.Is(err, ErrUnmappedByte) {
		t.Error("Expected error to match ErrUnmappedByte sentinel")
	}
	if errors.Is(err, ErrInvalidPartition) {
		t.Error("Error should not match ErrInvalidPartition")
	}
}

func TestInvalidPartitionError(t *testing.T) {
	err := NewInvalidPartitionError('a', []int{0, 2})

	expectedMsg := `invalid partition: letter 0x61 ('a') is assigned to 2 bins [0 2]`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	err.Partition = "run-1"
	expectedMsg = `invalid partition 'run-1': letter 0x61 ('a') is assigned to 2 bins [0 2]`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	if !errors.Is(err, ErrInvalidPartition) {
		t.Error("Expected error to match ErrInvalidPartition sentinel")
	}
}

func TestSubsetViolationError(t *testing.T) {
	err := NewSubsetViolationError("a", 3, 2)

	expectedMsg := `not a multi-set: "a" is needed 3 times but the population holds 2`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, ErrSubsetViolation) {
		t.Error("Expected error to match ErrSubsetViolation sentinel")
	}
}

func TestSolverError(t *testing.T) {
	infeasible := NewSolverError("gophersat", "infeasible", nil)
	if !errors.Is(infeasible, ErrSolverInfeasible) {
		t.Error("Expected infeasible status to match ErrSolverInfeasible")
	}
	if !errors.Is(infeasible, ErrSolverFailed) {
		t.Error("Expected solver error to match ErrSolverFailed")
	}

	cause := fmt.Errorf("parse failure")
	failed := NewSolverError("gini", "error", cause)
	if errors.Is(failed, ErrSolverInfeasible) {
		t.Error("Error status should not match ErrSolverInfeasible")
	}
	if !errors.Is(failed, cause) {
		t.Error("Expected solver error to unwrap to its cause")
	}

	expectedMsg := "solver 'gini' ended with status error: parse failure"
	if failed.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, failed.Error())
	}
}

func TestRunAndJobNotFoundErrors(t *testing.T) {
	runErr := NewRunNotFoundError("run-9")
	if runErr.Error() != "run with ID 'run-9' not found" {
		t.Errorf("Unexpected message: %s", runErr.Error())
	}
	if !errors.Is(runErr, ErrRunNotFound) {
		t.Error("Expected error to match ErrRunNotFound sentinel")
	}

	jobErr := NewJobNotFoundError("job-456")
	if jobErr.Error() != "job with ID 'job-456' not found" {
		t.Errorf("Unexpected message: %s", jobErr.Error())
	}
	if !errors.Is(jobErr, ErrJobNotFound) {
		t.Error("Expected error to match ErrJobNotFound sentinel")
	}
	if errors.Is(jobErr, ErrRunNotFound) {
		t.Error("Job error should not match ErrRunNotFound")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("model.number_of_bins", "must be between 1 and 64")
	expectedMsg := "validation error for field 'model.number_of_bins': must be between 1 and 64"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	bare := NewValidationError("", "empty corpus")
	if bare.Error() != "validation error: empty corpus" {
		t.Errorf("Unexpected message: %s", bare.Error())
	}

	wrapped := fmt.Errorf("loading config: %w", err)
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Error("Expected wrapped validation error to match ErrInvalidInput")
	}
}

func TestErrorsAs(t *testing.T) {
	var err error = fmt.Errorf("scoring: %w", NewUnmappedByteError(0xff, 0, "\xff"))

	var unmapped *UnmappedByteError
	if !errors.As(err, &unmapped) {
		t.Fatal("Expected errors.As to find UnmappedByteError")
	}
	if unmapped.Byte != 0xff {
		t.Errorf("Expected byte 0xff, got 0x%02x", unmapped.Byte)
	}
}

func TestWithCorpus(t *testing.T) {
	err := fmt.Errorf("words: %w", NewUnmappedByteError(0x01, 0, "\x01"))
	err = WithCorpus(err, "validation", "checkpoint 4")

	var unmapped *UnmappedByteError
	if !errors.As(err, &unmapped) {
		t.Fatal("Expected UnmappedByteError in chain")
	}
	if unmapped.Corpus != "validation" || unmapped.Partition != "checkpoint 4" {
		t.Errorf("Expected corpus and partition to be set, got '%s' and '%s'", unmapped.Corpus, unmapped.Partition)
	}

	other := NewValidationError("bins", "too many")
	if WithCorpus(other, "train", "p") != error(other) {
		t.Error("Expected unrelated errors to pass through")
	}
}

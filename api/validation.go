// Package api exposes runs, jobs and ad-hoc fingerprinting over HTTP.
package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/services"
)

// Request limits for the synchronous endpoints.
const (
	maxTexts      = 10000
	maxScorePairs = 1000000
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidateID validates a run or job ID path parameter
func ValidateID(field, id string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if id == "" {
		result.AddError(field, "ID is required")
		return result
	}

	if strings.TrimSpace(id) != id {
		result.AddError(field, "ID cannot have leading or trailing whitespace")
	}

	return result
}

// ValidateRunConfig reports every problem of a run configuration
func ValidateRunConfig(cfg *config.RunConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, problem := range cfg.Validate() {
		field := "config"
		if i := strings.IndexAny(problem, " '"); i > 0 && strings.Contains(problem[:i], ".") {
			field = problem[:i]
		}
		result.AddError(field, problem)
	}

	return result
}

// ValidatePartitionSpec checks that a request names a usable partition
func ValidatePartitionSpec(spec services.PartitionSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch {
	case len(spec.Partition) > 0 && spec.NumBins != 0 && spec.NumBins != len(spec.Partition):
		result.AddError("number_of_bins", fmt.Sprintf("number_of_bins %d disagrees with a partition of %d bins", spec.NumBins, len(spec.Partition)))
	case len(spec.Partition) > partition.MaxBins:
		result.AddError("partition", fmt.Sprintf("A partition has at most %d bins, got %d", partition.MaxBins, len(spec.Partition)))
	case len(spec.Partition) == 0 && (spec.NumBins < 1 || spec.NumBins > partition.MaxBins):
		result.AddError("number_of_bins", fmt.Sprintf("Either a partition or number_of_bins between 1 and %d is required", partition.MaxBins))
	}

	return result
}

// ValidateFingerprintRequest validates a fingerprint request
func ValidateFingerprintRequest(req *services.FingerprintRequest) *ValidationResult {
	result := ValidatePartitionSpec(req.PartitionSpec)

	if len(req.Texts) == 0 {
		result.AddError("texts", "No texts provided")
	}
	if len(req.Texts) > maxTexts {
		result.AddError("texts", fmt.Sprintf("At most %d texts per request, got %d", maxTexts, len(req.Texts)))
	}

	return result
}

// ValidateScoreRequest validates a score request
func ValidateScoreRequest(req *services.ScoreRequest) *ValidationResult {
	result := ValidatePartitionSpec(req.PartitionSpec)

	if len(req.Words) == 0 {
		result.AddError("words", "No words provided")
	}
	if len(req.Patterns) == 0 {
		result.AddError("patterns", "No patterns provided")
	}
	if pairs := len(req.Words) * len(req.Patterns); pairs > maxScorePairs {
		result.AddError("patterns", fmt.Sprintf("At most %d word/pattern pairs per request, got %d", maxScorePairs, pairs))
	}

	return result
}

// ValidateBudget parses the optional budget query parameter in seconds.
// A missing budget is -1 and keeps the whole trail.
func ValidateBudget(raw string) (float64, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	if raw == "" {
		return -1, result
	}
	budget, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		result.AddError("budget", "Budget must be a number of seconds: "+err.Error())
		return -1, result
	}
	if budget < 0 {
		result.AddError("budget", "Budget cannot be negative")
	}
	return budget, result
}

// SendValidationError sends a standardized validation error response
func SendValidationError(c *gin.Context, result *ValidationResult) {
	SendStructuredValidationError(c, result)
}

// ValidateJSONBinding validates JSON binding and returns a standardized error
func ValidateJSONBinding(c *gin.Context, target any) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if err := c.ShouldBindJSON(target); err != nil {
		result.AddError("request_body", "Invalid request body: "+err.Error())
	}

	return result
}

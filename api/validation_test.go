package api

import (
	"testing"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/services"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantValid bool
		wantError string
	}{
		{name: "valid ID", id: "0b4c2f0e-run", wantValid: true},
		{name: "empty ID", id: "", wantValid: false, wantError: "ID is required"},
		{name: "ID with whitespace", id: " run ", wantValid: false, wantError: "ID cannot have leading or trailing whitespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateID("runId", tt.id)

			if result.Valid != tt.wantValid {
				t.Errorf("ValidateID() Valid = %v, want %v", result.Valid, tt.wantValid)
			}
			if !tt.wantValid && len(result.Errors) > 0 && result.Errors[0].Message != tt.wantError {
				t.Errorf("ValidateID() error = %v, want %v", result.Errors[0].Message, tt.wantError)
			}
		})
	}
}

func TestValidatePartitionSpec(t *testing.T) {
	tests := []struct {
		name      string
		spec      services.PartitionSpec
		wantValid bool
		wantField string
	}{
		{name: "bins only", spec: services.PartitionSpec{NumBins: 8}, wantValid: true},
		{name: "partition only", spec: services.PartitionSpec{Partition: partition.Partition{[]byte("ab"), []byte("c")}}, wantValid: true},
		{name: "matching bins", spec: services.PartitionSpec{Partition: partition.Partition{[]byte("a")}, NumBins: 1}, wantValid: true},
		{name: "nothing", spec: services.PartitionSpec{}, wantValid: false, wantField: "number_of_bins"},
		{name: "too many bins", spec: services.PartitionSpec{NumBins: 65}, wantValid: false, wantField: "number_of_bins"},
		{name: "conflicting bins", spec: services.PartitionSpec{Partition: partition.Partition{[]byte("a")}, NumBins: 3}, wantValid: false, wantField: "number_of_bins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidatePartitionSpec(tt.spec)
			if result.Valid != tt.wantValid {
				t.Fatalf("ValidatePartitionSpec() Valid = %v, want %v (%+v)", result.Valid, tt.wantValid, result.Errors)
			}
			if !tt.wantValid && result.Errors[0].Field != tt.wantField {
				t.Errorf("ValidatePartitionSpec() field = %s, want %s", result.Errors[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidateScoreRequest(t *testing.T) {
	req := &services.ScoreRequest{PartitionSpec: services.PartitionSpec{NumBins: 4}}
	result := ValidateScoreRequest(req)
	if len(result.Errors) != 2 {
		t.Errorf("Expected missing words and patterns, got %+v", result.Errors)
	}

	req.Words = make([]string, 2000)
	req.Patterns = make([]string, 1000)
	result = ValidateScoreRequest(req)
	if !result.HasErrors() || result.Errors[0].Field != "patterns" {
		t.Errorf("Expected the pair limit to be enforced, got %+v", result.Errors)
	}
}

func TestValidateFingerprintRequest(t *testing.T) {
	req := &services.FingerprintRequest{PartitionSpec: services.PartitionSpec{NumBins: 4}, Texts: []string{"abc"}}
	if result := ValidateFingerprintRequest(req); result.HasErrors() {
		t.Errorf("Expected a valid request, got %+v", result.Errors)
	}
	req.Texts = nil
	if result := ValidateFingerprintRequest(req); !result.HasErrors() {
		t.Error("Expected an error without texts")
	}
}

func TestValidateBudget(t *testing.T) {
	tests := []struct {
		raw        string
		wantBudget float64
		wantValid  bool
	}{
		{raw: "", wantBudget: -1, wantValid: true},
		{raw: "90", wantBudget: 90, wantValid: true},
		{raw: "2.5", wantBudget: 2.5, wantValid: true},
		{raw: "-3", wantBudget: -3, wantValid: false},
		{raw: "ninety", wantBudget: -1, wantValid: false},
	}

	for _, tt := range tests {
		budget, result := ValidateBudget(tt.raw)
		if result.Valid != tt.wantValid || budget != tt.wantBudget {
			t.Errorf("ValidateBudget(%q) = %v, %v; want %v, %v", tt.raw, budget, result.Valid, tt.wantBudget, tt.wantValid)
		}
	}
}

func TestValidateRunConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.WordsFile = "words.txt"
	cfg.Corpus.PatternsFile = "patterns.txt"
	if result := ValidateRunConfig(&cfg); result.HasErrors() {
		t.Fatalf("Expected a valid config, got %+v", result.Errors)
	}

	cfg.Model.Encoding = "quadratic"
	cfg.Solver.Threads = -1
	result := ValidateRunConfig(&cfg)
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %+v", result.Errors)
	}
	if result.Errors[0].Field != "config" || result.Errors[1].Field != "solver.threads" {
		t.Errorf("Unexpected fields %s, %s", result.Errors[0].Field, result.Errors[1].Field)
	}
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/model"
)

// CreateRunHandler starts an optimisation run.
// Request Body: config.RunConfig, applied over the defaults
func (api *API) CreateRunHandler(c *gin.Context) {
	cfg := config.Default()
	if result := ValidateJSONBinding(c, &cfg); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	if result := ValidateRunConfig(&cfg); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	runID, jobID, err := api.engine.StartRun(cfg)
	if err != nil {
		if runID != "" {
			SendJobExecutionError(c, "optimize", err)
			return
		}
		SendDomainError(c, "run creation", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Optimisation started for run '" + runID + "'",
		"run_id":  runID,
		"job_id":  jobID,
	})
}

// ListRunsHandler lists every run without trails and entries.
func (api *API) ListRunsHandler(c *gin.Context) {
	runs := api.engine.ListRuns()
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetRunHandler returns a run with its trail and evaluation entries.
func (api *API) GetRunHandler(c *gin.Context) {
	runID := c.Param("runId")
	if result := ValidateID("runId", runID); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	run, err := api.engine.GetRun(runID)
	if err != nil {
		SendRunNotFoundError(c, runID)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetTrailHandler returns the trail of a run. With ?budget=<seconds> only the
// checkpoints reached within the budget are returned, together with the best
// of them.
func (api *API) GetTrailHandler(c *gin.Context) {
	runID := c.Param("runId")
	budget, result := ValidateBudget(c.Query("budget"))
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	trail, err := api.engine.RunTrail(runID, budget)
	if err != nil {
		SendDomainError(c, "trail lookup", err)
		return
	}

	response := gin.H{"trail": trail}
	if best, ok := trail.Under(budget); ok {
		response["best"] = best
	}
	c.JSON(http.StatusOK, response)
}

// EvaluateRunHandler re-evaluates the trail of a run in the background.
// Request Body: config.EvaluationConfig
func (api *API) EvaluateRunHandler(c *gin.Context) {
	runID := c.Param("runId")
	var ec config.EvaluationConfig
	if result := ValidateJSONBinding(c, &ec); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	jobID, err := api.engine.EvaluateRun(runID, ec)
	if err != nil {
		SendDomainError(c, "evaluation", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Evaluation started for run '" + runID + "'",
		"run_id":  runID,
		"job_id":  jobID,
	})
}

// ListRunJobsHandler lists the jobs of a run, optionally filtered by ?status=.
func (api *API) ListRunJobsHandler(c *gin.Context) {
	runID := c.Param("runId")
	if _, err := api.engine.GetRun(runID); err != nil {
		SendRunNotFoundError(c, runID)
		return
	}

	jobs := api.engine.ListJobs(runID, statusFilter(c))
	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"run_id": runID,
		"total":  len(jobs),
	})
}

func statusFilter(c *gin.Context) *model.JobStatus {
	statusParam := c.Query("status")
	if statusParam == "" {
		return nil
	}
	status := model.JobStatus(statusParam)
	return &status
}

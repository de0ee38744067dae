package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := api.engine.GetJob(jobID)
	if err != nil {
		SendJobNotFoundError(c, jobID)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobsHandler lists the jobs of every run, optionally filtered by ?status=
func (api *API) ListJobsHandler(c *gin.Context) {
	jobs := api.engine.ListJobs("", statusFilter(c))
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// CancelJobHandler asks a pending or running job to stop
func (api *API) CancelJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	if err := api.engine.CancelJob(jobID); err != nil {
		if _, lookupErr := api.engine.GetJob(jobID); lookupErr != nil {
			SendJobNotFoundError(c, jobID)
			return
		}
		SendError(c, http.StatusConflict, ErrorCodeValidationFailed, err.Error())
		return
	}

	job, err := api.engine.GetJob(jobID)
	if err != nil {
		SendJobNotFoundError(c, jobID)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// GetJobMetricsHandler handles requests to get job performance metrics
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	metrics := api.engine.GetJobMetrics()

	c.JSON(http.StatusOK, gin.H{
		"metrics":      metrics,
		"success_rate": metrics.SuccessRate,
	})
}

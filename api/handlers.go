package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utndatasystems/string-fingerprints/internal/evaluation"
	"github.com/utndatasystems/string-fingerprints/internal/fingerprint"
	"github.com/utndatasystems/string-fingerprints/services"
)

// maxBodySize bounds request bodies; corpora for /score travel inline.
const maxBodySize = 32 << 20

// API holds dependencies for API handlers, primarily the run engine.
type API struct {
	engine  services.Engine
	logger  *slog.Logger
	started time.Time
}

// NewAPI creates a new API handler structure.
func NewAPI(engine services.Engine, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		engine:  engine,
		logger:  logger.With("component", "api"),
		started: time.Now(),
	}
}

// SetupRoutes defines all the API routes.
func SetupRoutes(router *gin.Engine, engine services.Engine, logger *slog.Logger) {
	apiHandler := NewAPI(engine, logger)

	router.Use(RequestIDMiddleware(), LoggingMiddleware(apiHandler.logger), CORSMiddleware(), RequestSizeLimitMiddleware(maxBodySize))

	router.GET("/health", apiHandler.HealthCheckHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Synchronous fingerprinting and scoring
	router.POST("/fingerprints", apiHandler.FingerprintHandler)
	router.POST("/score", apiHandler.ScoreHandler)

	// Job management routes
	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("", apiHandler.ListJobsHandler)                 // List jobs of every run
		jobRoutes.GET("/metrics", apiHandler.GetJobMetricsHandler)    // Get job performance metrics
		jobRoutes.GET("/:jobId", apiHandler.GetJobHandler)            // Get job status by ID
		jobRoutes.POST("/:jobId/cancel", apiHandler.CancelJobHandler) // Cancel a pending or running job
	}

	// Run routes
	runRoutes := router.Group("/runs")
	{
		runRoutes.POST("", apiHandler.CreateRunHandler)                   // Start an optimisation run
		runRoutes.GET("", apiHandler.ListRunsHandler)                     // List all runs
		runRoutes.GET("/:runId", apiHandler.GetRunHandler)                // Get a run with its trail and entries
		runRoutes.GET("/:runId/trail", apiHandler.GetTrailHandler)        // Get the trail, optionally cut at a budget
		runRoutes.POST("/:runId/evaluate", apiHandler.EvaluateRunHandler) // Re-evaluate the trail of a run
		runRoutes.GET("/:runId/jobs", apiHandler.ListRunJobsHandler)      // List jobs of a run
	}
}

// HealthCheckHandler reports that the service is up.
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(api.started).Round(time.Second).String(),
		"runs":   len(api.engine.ListRuns()),
	})
}

// FingerprintHandler fingerprints texts under a partition.
// Request Body: services.FingerprintRequest
func (api *API) FingerprintHandler(c *gin.Context) {
	var req services.FingerprintRequest
	if result := ValidateJSONBinding(c, &req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	if result := ValidateFingerprintRequest(&req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	mapping, err := req.Mapping()
	if err != nil {
		SendDomainError(c, "fingerprinting", err)
		return
	}

	resp := services.FingerprintResponse{
		NumBins:      mapping.NumBins(),
		Fingerprints: make([]services.FingerprintResult, len(req.Texts)),
	}
	densities := make([]int, len(req.Texts))
	for i, text := range req.Texts {
		fp, err := fingerprint.Build(text, mapping)
		if err != nil {
			SendDomainError(c, "fingerprinting", err)
			return
		}
		densities[i] = fingerprint.Density(fp)
		resp.Fingerprints[i] = services.FingerprintResult{
			Text:        text,
			Fingerprint: fp,
			Bits:        fmt.Sprintf("%0*b", mapping.NumBins(), uint64(fp)),
			Density:     densities[i],
		}
	}
	resp.Density = fingerprint.Summarize(densities)

	c.JSON(http.StatusOK, resp)
}

// ScoreHandler returns the false-positive rate of a partition on a corpus.
// Request Body: services.ScoreRequest
func (api *API) ScoreHandler(c *gin.Context) {
	var req services.ScoreRequest
	if result := ValidateJSONBinding(c, &req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	if result := ValidateScoreRequest(&req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	mapping, err := req.Mapping()
	if err != nil {
		SendDomainError(c, "scoring", err)
		return
	}
	report, err := evaluation.Score(req.Words, req.Patterns, mapping)
	if err != nil {
		SendDomainError(c, "scoring", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapeworker/jobs"
	"github.com/use-agent/scrapeworker/models"
)

// GetJob returns a handler for GET /v1/scrape/:jobId (spec.md §6):
// 200 with the terminal result, 202 while still in flight, 404 if unknown.
func GetJob(mgr *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")

		status, success, errDetail, found := mgr.GetJobStatus(jobID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
				"code":  models.ErrCodeJobNotFound,
			})
			return
		}

		if status != nil {
			status.JobID = jobID
			c.JSON(http.StatusAccepted, status)
			return
		}

		if errDetail != nil {
			c.JSON(http.StatusOK, models.ErrorResponse{Error: errDetail.Message})
			return
		}

		success.JobID = jobID
		c.JSON(http.StatusOK, success)
	}
}

// DeleteJob returns a handler for DELETE /v1/scrape/:jobId. Deletion is
// unconditional and idempotent (spec.md §6, §7): it always reports success.
func DeleteJob(mgr *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		mgr.DeleteJob(c.Param("jobId"))
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

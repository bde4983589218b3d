package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/service"
)

// JobHandler handles job status, listing, and cancellation.
type JobHandler struct {
	analysis *service.AnalysisService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(analysis *service.AnalysisService) *JobHandler {
	return &JobHandler{analysis: analysis}
}

// Status handles GET /job-status/:id.
// Returns the current job status and, on terminal success, the full
// result envelope. Non-terminal records trigger one remote poll so a
// fast-mode caller eventually observes the true outcome here.
func (h *JobHandler) Status(c *gin.Context) {
	job, err := h.analysis.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{
		"job_id":       job.ID,
		"status":       job.Status,
		"submitted_at": job.SubmittedAt,
	}
	if job.Status == domain.JobStatusSucceeded {
		resp["result"] = job.Result
	}
	if job.Failure != nil {
		resp["failure"] = job.Failure
	}
	if job.TerminalAt != nil {
		resp["terminal_at"] = job.TerminalAt
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /jobs.
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.analysis.ListJobs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// Cancel handles DELETE /jobs/:id.
// Best-effort: a job the remote has already finished stays finished.
func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.analysis.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

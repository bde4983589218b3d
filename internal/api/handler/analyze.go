package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/service"
)

// AnalyzeHandler handles analysis submission in fast and sync mode.
type AnalyzeHandler struct {
	analysis *service.AnalysisService
}

// NewAnalyzeHandler creates a new analyze handler.
// Parameters:
//   - analysis: analysis service instance.
// Returns:
//   - *AnalyzeHandler: initialized handler.
func NewAnalyzeHandler(analysis *service.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{analysis: analysis}
}

// analyzeJSONRequest is the JSON body variant of POST /analyze.
type analyzeJSONRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
	Debug    bool   `json:"debug"`
}

// Analyze handles POST /analyze?wait_for_result={bool}.
//
// The request carries either a JSON body with an image_url or a
// multipart upload with a "file" field; uploads are staged into
// temporary storage first so the remote worker can fetch them by URL.
//
// Fast mode (the default) answers immediately with the job handle and
// never polls. Sync mode blocks until a terminal state or the configured
// wait bound and returns the full result envelope; on FAILED or
// TIMED_OUT the error envelope still carries the job id so the caller
// can poll later for the eventual true outcome.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait_for_result", "false"))

	req := service.AnalyzeRequest{WaitForResult: wait}

	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
				Kind:    domain.ErrKindValidation,
				Message: "multipart request requires a 'file' field",
			}})
			return
		}
		req.Debug, _ = strconv.ParseBool(c.PostForm("debug"))

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
				Kind:    domain.ErrKindValidation,
				Message: "failed to open uploaded file: " + err.Error(),
			}})
			return
		}
		defer f.Close()

		staged, err := h.analysis.StageUpload(c.Request.Context(), fileHeader.Filename, f)
		if err != nil {
			writeError(c, err)
			return
		}
		req.ImageURL = staged.Locator
		req.ImageName = staged.Name
	} else {
		var body analyzeJSONRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
				Kind:    domain.ErrKindValidation,
				Message: "invalid request: " + err.Error(),
			}})
			return
		}
		req.ImageURL = body.ImageURL
		req.Debug = body.Debug
	}

	job, err := h.analysis.Analyze(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	if !wait {
		c.JSON(http.StatusAccepted, gin.H{
			"job_id":     job.ID,
			"status":     job.Status,
			"status_url": "/job-status/" + job.ID,
		})
		return
	}

	writeTerminalJob(c, job)
}

// writeTerminalJob renders a sync-mode terminal job: the full result
// envelope on SUCCEEDED, a failure envelope with the job id otherwise.
func writeTerminalJob(c *gin.Context, job *domain.Job) {
	switch job.Status {
	case domain.JobStatusSucceeded:
		c.JSON(http.StatusOK, gin.H{
			"job_id": job.ID,
			"status": job.Status,
			"result": job.Result,
		})
	case domain.JobStatusTimedOut:
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"job_id":     job.ID,
			"status":     job.Status,
			"failure":    job.Failure,
			"status_url": "/job-status/" + job.ID,
		})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"job_id":  job.ID,
			"status":  job.Status,
			"failure": job.Failure,
		})
	}
}

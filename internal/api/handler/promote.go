package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/service"
)

// PromoteHandler handles artifact promotion.
type PromoteHandler struct {
	promoter *service.Promoter
}

// NewPromoteHandler creates a new promote handler.
func NewPromoteHandler(promoter *service.Promoter) *PromoteHandler {
	return &PromoteHandler{promoter: promoter}
}

// promoteRequest is the body of POST /promote.
type promoteRequest struct {
	JobID             string   `json:"job_id" binding:"required"`
	ArtifactNames     []string `json:"artifact_names" binding:"required,min=1"`
	DestinationPrefix string   `json:"destination_prefix" binding:"required"`
}

// Promote handles POST /promote.
// Copies approved artifacts of a SUCCEEDED job into permanent storage
// and reports the outcome per artifact: individual expiry or upload
// failures do not fail the other artifacts in the same call.
func (h *PromoteHandler) Promote(c *gin.Context) {
	var req promoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Kind:    domain.ErrKindValidation,
			Message: "invalid request: " + err.Error(),
		}})
		return
	}

	outcomes, err := h.promoter.Promote(c.Request.Context(), req.JobID, req.ArtifactNames, req.DestinationPrefix)
	if err != nil {
		writeError(c, err)
		return
	}

	promoted := 0
	for _, o := range outcomes {
		if o.Error == "" {
			promoted++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":             req.JobID,
		"destination_prefix": req.DestinationPrefix,
		"promoted":           promoted,
		"outcomes":           outcomes,
	})
}

// ListArtifacts handles GET /jobs/:id/artifacts.
// Describes the temporary visualization artifacts of a SUCCEEDED job so
// a caller can decide what to promote.
func (h *PromoteHandler) ListArtifacts(c *gin.Context) {
	jobID := c.Param("id")
	artifacts, err := h.promoter.ListArtifacts(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":    jobID,
		"artifacts": artifacts,
		"total":     len(artifacts),
	})
}

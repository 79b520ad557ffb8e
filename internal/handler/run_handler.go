package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/service"
	"github.com/guaminsects/crbmap/pkg/response"
)

// RunHandler handles HTTP requests for pipeline runs
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{service: service}
}

// ListRuns handles GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	runs, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to list runs", err)
		return
	}

	response.Success(c, gin.H{
		"data":  runs,
		"count": len(runs),
	})
}

// LatestRun handles GET /api/v1/runs/latest
func (h *RunHandler) LatestRun(c *gin.Context) {
	runID, stages, err := h.service.LatestRun(c.Request.Context())
	if errors.Is(err, service.ErrNoRuns) {
		response.NotFound(c, "No runs recorded")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get latest run", err)
		return
	}

	response.Success(c, gin.H{
		"run_id": runID,
		"data":   stages,
		"count":  len(stages),
	})
}

// StartRun handles POST /api/v1/runs. The rebuild runs in the background.
func (h *RunHandler) StartRun(c *gin.Context) {
	runID, err := h.service.StartRebuild()
	switch {
	case errors.Is(err, service.ErrRebuildInProgress):
		response.Conflict(c, err.Error())
		return
	case errors.Is(err, service.ErrRebuildDisabled):
		response.Error(c, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		response.InternalError(c, "Failed to start rebuild", err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{
		Code:    0,
		Message: "rebuild started",
		Data:    gin.H{"run_id": runID},
	})
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/service"
	"github.com/guaminsects/crbmap/pkg/response"
)

// GridHandler handles HTTP requests for grid cells and the damage legend
type GridHandler struct {
	service *service.GridService
}

// NewGridHandler creates a new grid handler
func NewGridHandler(service *service.GridService) *GridHandler {
	return &GridHandler{service: service}
}

// GetGridCells handles GET /api/v1/grid-cells
func (h *GridHandler) GetGridCells(c *gin.Context) {
	var filter models.GridFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	cells, err := h.service.GetGridCells(c.Request.Context(), filter)
	if errors.Is(err, service.ErrUnknownClass) {
		response.Error(c, http.StatusBadRequest, "Unknown damage class", err)
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get grid cells", err)
		return
	}

	response.Success(c, gin.H{
		"data":  cells,
		"count": len(cells),
	})
}

// GetGridCell handles GET /api/v1/grid-cells/:id
func (h *GridHandler) GetGridCell(c *gin.Context) {
	id, ok := parseID(c, "Invalid cell ID")
	if !ok {
		return
	}

	cell, err := h.service.GetGridCellByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, "Failed to get grid cell", err)
		return
	}
	if cell == nil {
		response.NotFound(c, "Grid cell not found")
		return
	}

	response.Success(c, cell)
}

// GetLegend handles GET /api/v1/legend
func (h *GridHandler) GetLegend(c *gin.Context) {
	doc, err := h.service.Legend(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to build legend", err)
		return
	}

	response.Success(c, doc)
}

// Classify handles GET /api/v1/classify?value=
func (h *GridHandler) Classify(c *gin.Context) {
	raw := c.Query("value")
	if raw == "" {
		response.BadRequest(c, "value is required")
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		response.BadRequest(c, "value must be a number")
		return
	}

	bin, ok := h.service.Classify(v)
	if !ok {
		response.Success(c, gin.H{"value": v, "classified": false})
		return
	}

	response.Success(c, gin.H{
		"value":      v,
		"classified": true,
		"bin":        bin,
	})
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/service"
	"github.com/guaminsects/crbmap/pkg/response"
)

// LayerHandler handles HTTP requests for stored map layers
type LayerHandler struct {
	service *service.LayerService
}

// NewLayerHandler creates a new layer handler
func NewLayerHandler(service *service.LayerService) *LayerHandler {
	return &LayerHandler{service: service}
}

// ListLayers handles GET /api/v1/layers
func (h *LayerHandler) ListLayers(c *gin.Context) {
	layers, err := h.service.ListLayers(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to list layers", err)
		return
	}
	view, err := h.service.View(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to read map view", err)
		return
	}

	response.Success(c, gin.H{
		"data":  layers,
		"count": len(layers),
		"view":  view,
	})
}

// GetLayer handles GET /api/v1/layers/:id and answers with a GeoJSON
// FeatureCollection in EPSG:4326.
func (h *LayerHandler) GetLayer(c *gin.Context) {
	id, ok := parseID(c, "Invalid layer ID")
	if !ok {
		return
	}

	fc, err := h.service.GetLayerGeoJSON(c.Request.Context(), id)
	switch {
	case errors.Is(err, layer.ErrLayerNotFound):
		response.NotFound(c, "Layer not found")
		return
	case errors.Is(err, service.ErrRasterLayer):
		response.Error(c, http.StatusUnprocessableEntity, "Layer is a tile layer", err)
		return
	case err != nil:
		response.InternalError(c, "Failed to get layer", err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

func parseID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, message)
		return 0, false
	}
	return id, true
}

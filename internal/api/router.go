package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/config"
	"github.com/guaminsects/crbmap/internal/handler"
	"github.com/guaminsects/crbmap/internal/middleware"
)

// Handlers groups the HTTP handlers the router mounts
type Handlers struct {
	Layers *handler.LayerHandler
	Grid   *handler.GridHandler
	Runs   *handler.RunHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(logger), middleware.Recovery(logger))
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	}

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "CRB damage map API is running",
		})
	})

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 图层
		layers := api.Group("/layers")
		{
			layers.GET("", h.Layers.ListLayers)
			layers.GET("/:id", h.Layers.GetLayer)
		}

		// 图例与分级
		api.GET("/legend", h.Grid.GetLegend)
		api.GET("/classify", h.Grid.Classify)

		// 网格
		cells := api.Group("/grid-cells")
		{
			cells.GET("", h.Grid.GetGridCells)
			cells.GET("/:id", h.Grid.GetGridCell)
		}

		// 构建记录
		runs := api.Group("/runs")
		{
			runs.GET("", h.Runs.ListRuns)
			runs.GET("/latest", h.Runs.LatestRun)
			runs.POST("", middleware.Auth(cfg.JWTSecret), h.Runs.StartRun)
		}
	}

	return r
}

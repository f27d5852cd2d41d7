package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/handler"
	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/middleware"
	"github.com/jengzang/regrowth-dataset/internal/service"
)

// SetupRouter wires the run API, health check and metrics endpoint
func SetupRouter(cfg *config.Config, runs *service.RunService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Regrowth dataset API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	runHandler := handler.NewRunHandler(runs)
	limiter := middleware.NewRateLimiter(cfg.RunRateLimit, time.Minute)

	api := r.Group("/api/v1")
	{
		api.GET("/stages", runHandler.ListStages)

		runGroup := api.Group("/runs")
		{
			runGroup.GET("", runHandler.ListRuns)
			runGroup.GET("/:id", runHandler.GetRun)
			runGroup.GET("/:id/points", runHandler.ListPoints)
			runGroup.POST("", middleware.Auth(cfg.JWTSecret), middleware.RateLimit(limiter), runHandler.CreateRun)
		}
	}

	return r
}

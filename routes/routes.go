package routes

import (
	"go-crisislens/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(h.Logger))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		crisis := api.Group("/crisis")
		crisis.POST("/process-report", h.ProcessReport)
		crisis.POST("/manual", h.ManualReport)
		crisis.POST("/:id/reconcile", h.ReconcileCrisis)
		crisis.DELETE("/:id", h.DeleteCrisis)

		api.GET("/recommendations", h.GetRecommendations)
		api.POST("/scraper/trigger", h.TriggerScrape)
	}

	return r
}

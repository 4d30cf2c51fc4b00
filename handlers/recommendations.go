package handlers

import (
	"net/http"

	"go-crisislens/processor"

	"github.com/gin-gonic/gin"
)

// GetRecommendations handles GET /api/recommendations.
func (h *Handler) GetRecommendations(c *gin.Context) {
	candidates, err := h.Recommender.Score(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(candidates),
		"candidates": candidates,
	})
}

// TriggerScrape handles POST /api/scraper/trigger: fetch the configured
// feeds now and run every post through the pipeline.
func (h *Handler) TriggerScrape(c *gin.Context) {
	if h.Feeds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no feeds configured"})
		return
	}

	reports, err := h.Feeds.Fetch(c.Request.Context(), "Manual Trigger")
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := h.Processor.ProcessBatch(c.Request.Context(), reports)
	c.JSON(http.StatusOK, gin.H{
		"totalScraped": len(reports),
		"summary":      processor.Summarize(items),
		"processed":    items,
	})
}

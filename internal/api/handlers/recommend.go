package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/metrics"
	"github.com/langchou/parkgazer/internal/recommender"
)

// Recommend 就近推荐
// 退化情形（无定位、无许可、全满）以 view_state 返回而非错误码
func (h *Handler) Recommend(c *gin.Context) {
	var req recommender.Request
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = recommender.ModeNow
	}

	result, err := h.recommender.Recommend(c.Request.Context(), &req, time.Now())
	if err != nil {
		h.logger.Error("Recommendation failed", zap.Error(err))
		metrics.RecommendRequests.WithLabelValues(string(recommender.ViewError)).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"data": gin.H{"view_state": recommender.ViewError},
		})
		return
	}

	metrics.RecommendRequests.WithLabelValues(string(result.ViewState)).Inc()
	c.JSON(http.StatusOK, gin.H{"data": result})
}

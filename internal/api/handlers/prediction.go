package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetPrediction 获取指定时刻的占用预测
// target 参数为 RFC3339，缺省取当前时刻
func (h *Handler) GetPrediction(c *gin.Context) {
	lotID := c.Param("id")

	now := time.Now()
	target := now
	if raw := c.Query("target"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target time, expected RFC3339"})
			return
		}
		target = parsed
	}

	predictions, err := h.predictor.Predict(c.Request.Context(), lotID, []time.Time{target}, now)
	if err != nil {
		h.logger.Error("Failed to predict", zap.String("lot_id", lotID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to predict"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": predictions[0]})
}

// GetPredictionTimeline 获取逐小时预测序列
// start 参数为 RFC3339（缺省当前时刻），hours 为时长（缺省 24，上限 72）
func (h *Handler) GetPredictionTimeline(c *gin.Context) {
	lotID := c.Param("id")

	start := time.Now()
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start time, expected RFC3339"})
			return
		}
		start = parsed
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours < 1 || hours > 72 {
		hours = 24
	}

	// 优先读预存批次，空档时现算
	timeline, err := h.predictionRepo.ListTimeline(c.Request.Context(), lotID, start, start.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		h.logger.Error("Failed to list prediction timeline", zap.String("lot_id", lotID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load timeline"})
		return
	}
	if len(timeline) == 0 {
		targets := make([]time.Time, 0, hours)
		first := start.Truncate(time.Hour)
		for i := 0; i < hours; i++ {
			targets = append(targets, first.Add(time.Duration(i)*time.Hour))
		}
		timeline, err = h.predictor.Predict(c.Request.Context(), lotID, targets, time.Now())
		if err != nil {
			h.logger.Error("Failed to predict timeline", zap.String("lot_id", lotID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to predict"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": timeline})
}

// TriggerTraining 手动触发模型训练
// 请求体可选 {"days_back": N}
func (h *Handler) TriggerTraining(c *gin.Context) {
	var req struct {
		DaysBack int `json:"days_back"`
	}
	// 空请求体合法
	_ = c.ShouldBindJSON(&req)

	result, err := h.trainer.Train(c.Request.Context(), req.DaysBack, time.Now())
	if err != nil {
		h.logger.Error("Training failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Training failed"})
		return
	}

	if result.Success {
		h.predictor.InvalidateModelCache()
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

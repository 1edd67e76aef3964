package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
)

// ListEvents 获取活动列表
// since 参数为 RFC3339，缺省取当前时刻（只看未结束的活动）
func (h *Handler) ListEvents(c *gin.Context) {
	since := time.Now()
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since time, expected RFC3339"})
			return
		}
		since = parsed
	}

	events, err := h.eventRepo.ListSince(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// CreateEvent 创建校园活动（管理端，供预测特征使用）
func (h *Handler) CreateEvent(c *gin.Context) {
	var event models.Event
	if err := c.BindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if event.LotID == "" || event.Name == "" || !event.EventType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lot_id, name and valid event_type are required"})
		return
	}
	if !event.EndTime.After(event.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}

	if err := h.eventRepo.Create(c.Request.Context(), &event); err != nil {
		h.logger.Error("Failed to create event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create event"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": event})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/config"
)

// GetSettings 读取运营配置（经缓存）
func (h *Handler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			config.KeyFreeParkingMinutes: h.settings.GetInt(ctx, config.KeyFreeParkingMinutes, 0),
			config.KeyAutoReportEnter:    h.settings.GetBool(ctx, config.KeyAutoReportEnter, false),
			config.KeyAutoReportExit:     h.settings.GetBool(ctx, config.KeyAutoReportExit, false),
		},
	})
}

// SetSetting 写入运营配置项
func (h *Handler) SetSetting(c *gin.Context) {
	key := c.Param("key")

	var req struct {
		Value string `json:"value"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		h.logger.Error("Failed to set setting", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save setting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"key": key, "value": req.Value}})
}

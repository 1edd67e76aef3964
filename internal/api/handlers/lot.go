package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/cache"
	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/repository"
)

// ListLots 获取停车场列表
func (h *Handler) ListLots(c *gin.Context) {
	lots, err := h.lotRepo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list lots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list lots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lots})
}

// GetLot 获取停车场详情
func (h *Handler) GetLot(c *gin.Context) {
	lot, err := h.lotRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lot not found"})
			return
		}
		h.logger.Error("Failed to get lot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get lot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lot})
}

// UpsertLot 创建或更新停车场（管理端）
func (h *Handler) UpsertLot(c *gin.Context) {
	var lot models.Lot
	if err := c.BindJSON(&lot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	lot.ID = c.Param("id")
	if lot.ID == "" || lot.Name == "" || lot.Capacity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id, name and positive capacity are required"})
		return
	}

	if err := h.lotRepo.Upsert(c.Request.Context(), &lot); err != nil {
		h.logger.Error("Failed to upsert lot", zap.String("lot_id", lot.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save lot"})
		return
	}

	// 容量、许可等变更后旧状态缓存作废
	if err := h.cache.Delete(c.Request.Context(), cache.KeyStatusPrefix+lot.ID); err != nil {
		h.logger.Warn("Failed to invalidate status cache", zap.String("lot_id", lot.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"data": lot})
}

// GetLotStatus 获取单场实时状态，先查缓存未命中再回源数据库
func (h *Handler) GetLotStatus(c *gin.Context) {
	lotID := c.Param("id")

	var cached models.LotStatus
	if found, err := h.cache.Get(c.Request.Context(), cache.KeyStatusPrefix+lotID, &cached); err == nil && found {
		c.JSON(http.StatusOK, gin.H{"data": &cached})
		return
	}

	status, err := h.statusRepo.GetByLot(c.Request.Context(), lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Status not found"})
			return
		}
		h.logger.Error("Failed to get lot status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

// ListStatuses 获取全部停车场实时状态
// permits 参数可选，传入时只返回持证可停的场
func (h *Handler) ListStatuses(c *gin.Context) {
	statuses, err := h.statusRepo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list statuses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list statuses"})
		return
	}

	permits := splitPermits(c.Query("permits"))
	if len(permits) > 0 {
		lots, err := h.lotRepo.List(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to list lots for permit filter", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list statuses"})
			return
		}
		allowed := make(map[string]bool, len(lots))
		for _, lot := range lots {
			if lot.PermitsAllow(permits) {
				allowed[lot.ID] = true
			}
		}
		filtered := statuses[:0]
		for _, s := range statuses {
			if allowed[s.LotID] {
				filtered = append(filtered, s)
			}
		}
		statuses = filtered
	}

	c.JSON(http.StatusOK, gin.H{"data": statuses})
}

// splitPermits 解析逗号分隔的许可列表
func splitPermits(raw string) []string {
	if raw == "" {
		return nil
	}
	var permits []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permits = append(permits, p)
		}
	}
	return permits
}

package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
)

// lastFixSource 以设备最近推送的定位点作为后台轮询的定位源
type lastFixSource struct {
	mu  sync.RWMutex
	fix *models.LatLng
}

func (s *lastFixSource) Current(_ context.Context) (*models.LatLng, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fix, nil
}

func (s *lastFixSource) update(lat, lon float64) {
	s.mu.Lock()
	s.fix = &models.LatLng{Latitude: lat, Longitude: lon}
	s.mu.Unlock()
}

var (
	fixSourcesMu sync.Mutex
	fixSources   = make(map[string]*lastFixSource)
)

func fixSourceFor(deviceID string) *lastFixSource {
	fixSourcesMu.Lock()
	defer fixSourcesMu.Unlock()
	if s, ok := fixSources[deviceID]; ok {
		return s
	}
	s := &lastFixSource{}
	fixSources[deviceID] = s
	return s
}

// GeofenceLocation 接收设备定位点并做围栏判定
func (h *Handler) GeofenceLocation(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := c.BindJSON(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}

	fixSourceFor(deviceID).update(*req.Latitude, *req.Longitude)

	event, err := h.geofenceSvc.OnLocation(c.Request.Context(), deviceID, *req.Latitude, *req.Longitude)
	if err != nil {
		h.logger.Error("Geofence detection failed", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Geofence detection failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"event": event}})
}

// GeofenceStart 启动设备后台围栏轮询
func (h *Handler) GeofenceStart(c *gin.Context) {
	deviceID := c.Param("device_id")

	// 轮询生命周期超出单个请求，不能挂在请求 context 上
	if err := h.geofenceSvc.Start(context.Background(), deviceID, fixSourceFor(deviceID)); err != nil {
		h.logger.Error("Failed to start geofence", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start geofence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"running": true}})
}

// GeofenceStop 停止设备后台围栏轮询
func (h *Handler) GeofenceStop(c *gin.Context) {
	deviceID := c.Param("device_id")
	h.geofenceSvc.Stop(deviceID)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"running": false}})
}

// GeofenceStatus 查询设备围栏运行状态
func (h *Handler) GeofenceStatus(c *gin.Context) {
	deviceID := c.Param("device_id")
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"running": h.geofenceSvc.IsRunning(deviceID),
		},
	})
}
